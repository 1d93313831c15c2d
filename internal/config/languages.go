package config

// Language is a selectable translation language.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Flag string `json:"flag"`
}

// Languages lists the languages offered by the dashboard.
var Languages = []Language{
	{Code: "en", Name: "English", Flag: "🇺🇸"},
	{Code: "sw", Name: "Swahili", Flag: "🇰🇪"},
	{Code: "es", Name: "Spanish", Flag: "🇪🇸"},
	{Code: "fr", Name: "French", Flag: "🇫🇷"},
	{Code: "de", Name: "German", Flag: "🇩🇪"},
	{Code: "it", Name: "Italian", Flag: "🇮🇹"},
	{Code: "pt", Name: "Portuguese", Flag: "🇧🇷"},
	{Code: "ar", Name: "Arabic", Flag: "🇸🇦"},
	{Code: "hi", Name: "Hindi", Flag: "🇮🇳"},
	{Code: "zh", Name: "Chinese (Mandarin)", Flag: "🇨🇳"},
	{Code: "ja", Name: "Japanese", Flag: "🇯🇵"},
	{Code: "ko", Name: "Korean", Flag: "🇰🇷"},
	{Code: "ru", Name: "Russian", Flag: "🇷🇺"},
	{Code: "tr", Name: "Turkish", Flag: "🇹🇷"},
	{Code: "yo", Name: "Yoruba", Flag: "🇳🇬"},
	{Code: "am", Name: "Amharic", Flag: "🇪🇹"},
}

// LanguageName returns the display name for code, or code itself when unknown.
func LanguageName(code string) string {
	for _, l := range Languages {
		if l.Code == code {
			return l.Name
		}
	}
	return code
}
