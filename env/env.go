package env

type Args struct {
	Config  *string
	Test    *bool
	Verbose *bool
	LogFile *string
}
