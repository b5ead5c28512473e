package commands

// AnnotationSkipContainer marks commands that run without opening the store.
const AnnotationSkipContainer = "riskgate/skip-container"

// Output formats
const (
	OutputText = "text"
	OutputJSON = "json"
)

// Error messages
const (
	ErrContainerUnavailable     = "riskgate is not initialized"
	ErrDoctorServiceUnavailable = "doctor service unavailable"
	ErrJournalUnavailable       = "decision journal is disabled"
	ErrInvalidRetainDays        = "--days must be > 0"
	ErrInvalidLimit             = "--limit must be >= 1"
	ErrUnknownOutput            = "--output must be text or json"
)

// Success messages
const (
	MsgConfigurationValid = "Configuration valid"
	MsgNoHistoryRecorded  = "No decisions recorded yet."
	MsgNoFamilies         = "No compressed families."
)
