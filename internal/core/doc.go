// Package core provides the business logic of the dance competition entry
// service.
//
// The package has no transport dependencies. Web handlers and CLI commands
// call into a [Service] with an [Actor] describing who is acting; ownership
// and admin checks happen here, not in the callers.
//
// # Sections
//
// An entry is split into form sections, each stored in its own detail table
// with a completion flag on the entries row. Sections are registered at init
// time using [Register] (see the sections subpackage):
//
//	core.Register(core.SectionDefinition{
//	    Info: core.SectionInfo{Key: "sns_info", Label: "SNS information",
//	        Table: "sns_info", DoneColumn: "sns_info_done"},
//	    FieldSpecs: []core.FieldSpec{
//	        {Name: "instagram", Type: core.FieldText, MaxLength: 100},
//	        {Name: "publish_consent", Type: core.FieldBool, Required: true},
//	    },
//	})
//
// A section payload is validated against its field specs by
// [ValidateSection]. Unknown keys are rejected and a section is complete
// when every required field has a value.
//
// # Transactions
//
// Writes that touch more than one row run in a single transaction: creating
// an entry with its basic information, saving a section with its status flag,
// and each row of a CSV import. Object storage cannot join a transaction, so
// file uploads delete the stored object when the row insert fails.
//
// # Error Handling
//
// Operations return wrapped sentinel errors ([ErrEntryNotFound],
// [ErrForbidden], [ErrDeadlinePassed], ...). [MapError] turns any error into
// a user message with a support code:
//
//   - AUTH: sign-in and permissions
//   - ENT: entries and submission
//   - SEC: sections, validation and settings
//   - FILE: uploads
//   - CSV: import and export
//   - MAIL: notifications
//   - DB: database failures
package core
