package kb

func fixtureEntities() []*Entity {
	return []*Entity{
		{ID: 1, Types: ParseTypeSet("person|artist"), Fields: map[string]string{
			FieldName:          "Vladimír Staněk",
			FieldAliases:       "Dr. Vladimír Staněk|V. Staněk",
			FieldRoles:         "physician|writer",
			FieldGender:        "M",
			FieldDateOfBirth:   "1950-03-02",
			FieldNationalities: "Czech|czechoslovak",
			FieldConfidence:    "12.5",
			FieldWikidataURL:   "http://www.wikidata.org/entity/Q1",
		}},
		{ID: 2, Types: ParseTypeSet("location|settlement"), Fields: map[string]string{
			FieldName:         "Paris",
			FieldCountry:      "FR",
			FieldConfidence:   "40",
			FieldWikipediaURL: "https://en.wikipedia.org/wiki/Paris",
		}},
		{ID: 3, Types: ParseTypeSet("nationality"), Fields: map[string]string{
			FieldName:    "Czech",
			FieldAliases: "Czechs",
			FieldCountry: "Czech Republic",
		}},
		{ID: 4, Types: ParseTypeSet("group"), Fields: map[string]string{
			FieldName:       "The Band",
			FieldConfidence: "n/a",
		}},
	}
}
