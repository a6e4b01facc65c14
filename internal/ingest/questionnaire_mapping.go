package ingest

// QuestionnaireField binds a raw questionnaire column to a canonical field
// and, when the column carries categorical answers, a value mapper that
// rewrites localized or free-form labels into canonical codes.
type QuestionnaireField struct {
	Field  string
	Mapper map[string]string
}

// QuestionnaireColumnsMapping renames raw questionnaire columns before value
// mapping. The export's unnamed leading column carries the subject code, and
// the version column header is localized.
var QuestionnaireColumnsMapping = map[string]string{
	"":             "subject_code",
	"subject code": "subject_code",
	"גרסת שאלון":   "version",
}

// QuestionnaireMapping lists the questionnaire columns with canonical
// destinations. Columns without a mapper pass their values through unchanged;
// answered-in-Hebrew categorical columns translate here.
var QuestionnaireMapping = map[string]QuestionnaireField{
	"Gender": {
		Field:  "sex",
		Mapper: map[string]string{"Female": "F", "Male": "M", "נקבה": "F", "זכר": "M", "": "U"},
	},
	"version": {
		Field: "version",
		Mapper: map[string]string{
			"גרסה 1 (2021)": "1 (2021)",
			"גרסה 2 (2022)": "2 (2022)",
			"גרסה 3 (2024)": "3 (2024)",
			"גרסה 1 (2021) עם השלמות של גרסה 3": "1 (2021) with 3 (2024) supplements",
		},
	},
	"DominantHand": {
		Field: "handedness",
		Mapper: map[string]string{
			"Right": "R",
			"Left":  "L",
			"Both":  "A",
			"ימין":  "R",
			"שמאל":  "L",
			"אין לי יד דומיננטית": "A",
			"לא מוחלט":            "A",
			"":                    "U",
		},
	},
	"Weight (kg)": {Field: "weight"},
	"Height (cm)": {Field: "height"},
	"Gender Indentity": {
		Field: "gender_identity",
		Mapper: map[string]string{
			"Cisgender":   "cisgender",
			"Transgender": "transgender",
			"A-binary":    "non-binary",
			"":            "U",
		},
	},
	"Sexual Orientation": {
		Field: "sexual_orientation",
		Mapper: map[string]string{
			"Heterosexual":              "heterosexual",
			"Homosexual/Lesbian":        "homosexual",
			"Bisexual":                  "bisexual",
			"Asexual":                   "asexual",
			"Pansexual":                 "pansexual",
			"Other/Don't want to answer": "U",
			"":                           "U",
		},
	},
	"Marital Status": {
		Field: "marital_status",
		Mapper: map[string]string{
			"Single":             "single",
			"Married":            "married",
			"Common-Law Partner": "common-law partner",
			"Divorced":           "divorced",
			"Widow/er":           "widowed",
			"Seperated":          "separated",
			"In Relationship":    "in a relationship",
			"":                   "U",
		},
	},
	"Twins": {
		Field: "twins",
		Mapper: map[string]string{
			"No":            "false",
			"Identical":     "identical",
			"Non-Identical": "non-identical",
		},
	},
	"Depression": {
		Field:  "depression",
		Mapper: map[string]string{"0": "false", "1": "true"},
	},
	"Anxiety": {
		Field:  "anxiety",
		Mapper: map[string]string{"0": "false", "1": "true"},
	},
	"CommunicationDisorders": {
		Field:  "communication_disorders",
		Mapper: map[string]string{"0": "false", "1": "true"},
	},
	"AttentionDisorders": {
		Field:  "attention_disorders",
		Mapper: map[string]string{"0": "false", "1": "true"},
	},
	"VisualAid": {
		Field:  "visual_aid",
		Mapper: map[string]string{"No": "false", "Yes": "true"},
	},
	"HearingAid": {
		Field:  "hearing_aid",
		Mapper: map[string]string{"No": "false", "Yes": "true"},
	},
	"LongCovid": {
		Field:  "long_covid",
		Mapper: map[string]string{"No": "false", "Yes": "true", "LongCovid": "true"},
	},
	"TrainingGroup": {
		Field:  "training_alone",
		Mapper: map[string]string{"Alone": "true", "Group": "false"},
	},
	"Education": {
		Field: "education_level",
		Mapper: map[string]string{
			"High school graduate":   "high school",
			"Academic graduate":      "bachelor's degree",
			"Academic undergraduate": "undergraduate",
			"Post-secondary school":  "post-secondary",
			"Partial high school":    "partial high school",
			"Elementary":             "elementary school",
			"":                       "U",
		},
	},
}
