package sections

import "github.com/JonMunkholm/DanceEntry/internal/core"

func init() {
	registerPreliminary()
	registerRound("semifinals_info", "Semifinal round", 3, false)
	registerRound("finals_info", "Final round", 4, false)
}

// routineFields are shared by every round.
func routineFields() []core.FieldSpec {
	return []core.FieldSpec{
		{Name: "routine_title", Label: "Routine title", Type: core.FieldText, Required: true, MaxLength: 100},
		{Name: "choreographer", Label: "Choreographer", Type: core.FieldText, MaxLength: 100},
		{Name: "music_title", Label: "Music title", Type: core.FieldText, Required: true, MaxLength: 200},
		{Name: "music_artist", Label: "Music artist", Type: core.FieldText, Required: true, MaxLength: 200},
		{Name: "duration_seconds", Label: "Duration (seconds)", Type: core.FieldNumber, Required: true},
	}
}

var routineSample = []string{"Midnight Run", "Ken Sato", "Run", "The Band", "180"}

func registerPreliminary() {
	specs := append(routineFields(),
		core.FieldSpec{Name: "video_url", Label: "Audition video URL", Type: core.FieldURL, Required: true, MaxLength: 500},
	)
	core.Register(core.SectionDefinition{
		Info: core.SectionInfo{
			Key:               "preliminary_info",
			Label:             "Preliminary round",
			Order:             2,
			Table:             "preliminary_info",
			DoneColumn:        "preliminary_info_done",
			RequiredForSubmit: true,
			Sample:            append(append([]string{}, routineSample...), "https://example.com/video/123"),
		},
		FieldSpecs: specs,
	})
}

func registerRound(key, label string, order int, required bool) {
	specs := append(routineFields(),
		core.FieldSpec{Name: "stage_notes", Label: "Stage notes", Type: core.FieldText, MaxLength: 1000},
		core.FieldSpec{Name: "lighting_request", Label: "Lighting request", Type: core.FieldText, MaxLength: 1000},
	)
	core.Register(core.SectionDefinition{
		Info: core.SectionInfo{
			Key:               key,
			Label:             label,
			Order:             order,
			Table:             key,
			DoneColumn:        key + "_done",
			RequiredForSubmit: required,
			Sample:            append(append([]string{}, routineSample...), "Enter from stage left", "Blue wash for the intro"),
		},
		FieldSpecs: specs,
	})
}
