package lang

import "strings"

type english struct {
	table
}

func newEnglish() *english {
	return &english{table{
		code: "en",
		pronouns: map[string]GenderClass{
			"he": GenderMale, "him": GenderMale, "himself": GenderMale, "his": GenderMale,
			"she": GenderFemale, "her": GenderFemale, "hers": GenderFemale, "herself": GenderFemale,
			"who": GenderAny, "whom": GenderAny, "whose": GenderAny,
			"here": GenderLocation, "there": GenderLocation, "where": GenderLocation,
		},
		verbs: []string{" is ", " are ", " was ", " were "},
		preps: []string{"the", "upon"},
	}}
}

func (e *english) FilterSenses(senses []int, env SenseEnv) []int {
	isLoc := func(id int) bool { return env.HasType(id, "location") }

	// no possessive locations
	if env.RightContext("'s") {
		senses = filter(senses, func(id int) bool { return !isLoc(id) })
	}
	if strings.HasPrefix(env.Source(), "The ") {
		senses = filter(senses, func(id int) bool { return !isLoc(id) })
	}
	if env.LeftContext(" into ") {
		senses = filter(senses, isLoc)
	}
	return senses
}

// SkipPronoun skips the existential "There is/was/has ...".
func (e *english) SkipPronoun(env SenseEnv) bool {
	if env.Source() != "There" {
		return false
	}
	for _, v := range []string{" is ", " are ", " was ", " were ", " has ", " have ", " had "} {
		if env.RightContext(v) {
			return true
		}
	}
	return false
}
