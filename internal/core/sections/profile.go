package sections

import "github.com/JonMunkholm/DanceEntry/internal/core"

func init() {
	registerProgramInfo()
	registerSNSInfo()
	registerRequestsInfo()
}

func registerProgramInfo() {
	core.Register(core.SectionDefinition{
		Info: core.SectionInfo{
			Key:        "program_info",
			Label:      "Program information",
			Order:      5,
			Table:      "program_info",
			DoneColumn: "program_info_done",
			Sample:     []string{"A street dance crew from Tokyo.", "2025 regional winner", "Night Owls at practice"},
		},
		FieldSpecs: []core.FieldSpec{
			{Name: "profile_text", Label: "Profile", Type: core.FieldText, Required: true, MaxLength: 400},
			{Name: "achievements", Label: "Achievements", Type: core.FieldText, MaxLength: 400},
			{Name: "photo_caption", Label: "Photo caption", Type: core.FieldText, MaxLength: 100},
		},
	})
}

func registerSNSInfo() {
	core.Register(core.SectionDefinition{
		Info: core.SectionInfo{
			Key:               "sns_info",
			Label:             "SNS information",
			Order:             6,
			Table:             "sns_info",
			DoneColumn:        "sns_info_done",
			RequiredForSubmit: true,
			Sample:            []string{"@nightowls", "@nightowls", "https://youtube.com/@nightowls", "", "yes"},
		},
		FieldSpecs: []core.FieldSpec{
			{Name: "instagram", Label: "Instagram", Type: core.FieldText, MaxLength: 100},
			{Name: "x_account", Label: "X", Type: core.FieldText, MaxLength: 100},
			{Name: "youtube", Label: "YouTube", Type: core.FieldURL, MaxLength: 500},
			{Name: "tiktok", Label: "TikTok", Type: core.FieldText, MaxLength: 100},
			{Name: "publish_consent", Label: "Allow publishing", Type: core.FieldBool, Required: true},
		},
	})
}

func registerRequestsInfo() {
	core.Register(core.SectionDefinition{
		Info: core.SectionInfo{
			Key:        "requests_info",
			Label:      "Requests",
			Order:      7,
			Table:      "requests_info",
			DoneColumn: "requests_info_done",
			Sample:     []string{"Near the stage", "Wheelchair access", ""},
		},
		FieldSpecs: []core.FieldSpec{
			{Name: "dressing_room_request", Label: "Dressing room", Type: core.FieldText, MaxLength: 500},
			{Name: "accessibility_needs", Label: "Accessibility needs", Type: core.FieldText, MaxLength: 500},
			{Name: "other", Label: "Other", Type: core.FieldText, MaxLength: 1000},
		},
	})
}
