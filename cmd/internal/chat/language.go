package chat

// Language is an ISO 639-1 code from the supported set.
type Language string

const (
	LangEnglish    Language = "en"
	LangSpanish    Language = "es"
	LangHindi      Language = "hi"
	LangFrench     Language = "fr"
	LangGerman     Language = "de"
	LangPortuguese Language = "pt"
	LangChinese    Language = "zh"
	LangArabic     Language = "ar"
)

// Defaults per deployment: doctors speak English, patients default to Spanish.
const (
	DefaultDoctorLanguage  = LangEnglish
	DefaultPatientLanguage = LangSpanish
)

// LanguageOption carries display names for a supported language.
type LanguageOption struct {
	Code       Language
	Label      string
	NativeName string
}

// SupportedLanguages lists every language the translator accepts,
// in UI presentation order.
var SupportedLanguages = []LanguageOption{
	{Code: LangEnglish, Label: "English", NativeName: "English"},
	{Code: LangSpanish, Label: "Spanish", NativeName: "Español"},
	{Code: LangHindi, Label: "Hindi", NativeName: "हिन्दी"},
	{Code: LangFrench, Label: "French", NativeName: "Français"},
	{Code: LangGerman, Label: "German", NativeName: "Deutsch"},
	{Code: LangPortuguese, Label: "Portuguese", NativeName: "Português"},
	{Code: LangChinese, Label: "Chinese", NativeName: "中文"},
	{Code: LangArabic, Label: "Arabic", NativeName: "العربية"},
}

// Supported reports whether the code belongs to the supported set.
func (l Language) Supported() bool {
	for _, opt := range SupportedLanguages {
		if opt.Code == l {
			return true
		}
	}
	return false
}

// Name returns the English label for a language code, falling back to the
// raw code for unknown values so prompts stay usable.
func (l Language) Name() string {
	for _, opt := range SupportedLanguages {
		if opt.Code == l {
			return opt.Label
		}
	}
	return string(l)
}
