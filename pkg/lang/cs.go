package lang

type czech struct {
	table
}

func newCzech() *czech {
	return &czech{table{
		code: "cs",
		pronouns: map[string]GenderClass{
			"on": GenderMale, "ho": GenderMale, "jej": GenderMale, "něj": GenderMale,
			"jeho": GenderMale, "něho": GenderMale, "mu": GenderMale, "jemu": GenderMale,
			"němu": GenderMale, "něm": GenderMale, "jím": GenderMale, "ním": GenderMale,
			"ona": GenderFemale, "jí": GenderFemale, "ní": GenderFemale, "ji": GenderFemale, "ni": GenderFemale,
		},
		verbs: []string{" byl ", " byla ", " je "},
	}}
}

// FilterSenses keeps only events after "během" ("during").
func (c *czech) FilterSenses(senses []int, env SenseEnv) []int {
	if env.LeftContext(" během ") {
		return filter(senses, func(id int) bool { return env.HasType(id, "event") })
	}
	return senses
}
