package sections

import "github.com/JonMunkholm/DanceEntry/internal/core"

// Categories a team can enter.
var Categories = []string{"solo", "duo", "team"}

func init() {
	registerBasicInfo()
}

func registerBasicInfo() {
	core.Register(core.SectionDefinition{
		Info: core.SectionInfo{
			Key:               "basic_info",
			Label:             "Basic information",
			Order:             1,
			Table:             "basic_info",
			DoneColumn:        "basic_info_done",
			RequiredForSubmit: true,
			Sample:            []string{"Night Owls", "Aoi Tanaka", "090-1234-5678", "team", "5", "Tokyo", "2001-04-15"},
		},
		FieldSpecs: []core.FieldSpec{
			{Name: "team_name", Label: "Team name", Type: core.FieldText, Required: true, MaxLength: 100},
			{Name: "representative_name", Label: "Representative", Type: core.FieldText, Required: true, MaxLength: 100},
			{Name: "phone", Label: "Phone", Type: core.FieldText, Required: true, MaxLength: 30},
			{Name: "category", Label: "Category", Type: core.FieldEnum, Required: true, EnumValues: Categories},
			{Name: "member_count", Label: "Members", Type: core.FieldNumber, Required: true},
			{Name: "region", Label: "Region", Type: core.FieldText, MaxLength: 100},
			{Name: "birth_date", Label: "Representative birth date", Type: core.FieldDate},
		},
	})
}
