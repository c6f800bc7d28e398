package profile

// countryNames maps ISO 3166-1 alpha-2 flag codes scraped from profile
// pages to display names.
var countryNames = map[string]string{
	"ad": "Andorra",
	"ae": "United Arab Emirates",
	"ar": "Argentina",
	"at": "Austria",
	"au": "Australia",
	"bd": "Bangladesh",
	"be": "Belgium",
	"bg": "Bulgaria",
	"br": "Brazil",
	"ca": "Canada",
	"ch": "Switzerland",
	"cl": "Chile",
	"cn": "China",
	"co": "Colombia",
	"cz": "Czech Republic",
	"de": "Germany",
	"dk": "Denmark",
	"eg": "Egypt",
	"es": "Spain",
	"fi": "Finland",
	"fr": "France",
	"gb": "United Kingdom",
	"gr": "Greece",
	"hk": "Hong Kong",
	"hr": "Croatia",
	"hu": "Hungary",
	"id": "Indonesia",
	"ie": "Ireland",
	"il": "Israel",
	"in": "India",
	"it": "Italy",
	"jp": "Japan",
	"ke": "Kenya",
	"kr": "South Korea",
	"lk": "Sri Lanka",
	"ma": "Morocco",
	"mx": "Mexico",
	"my": "Malaysia",
	"ng": "Nigeria",
	"nl": "Netherlands",
	"no": "Norway",
	"np": "Nepal",
	"nz": "New Zealand",
	"pe": "Peru",
	"ph": "Philippines",
	"pk": "Pakistan",
	"pl": "Poland",
	"pt": "Portugal",
	"ro": "Romania",
	"rs": "Serbia",
	"ru": "Russia",
	"se": "Sweden",
	"sg": "Singapore",
	"th": "Thailand",
	"tr": "Turkey",
	"ua": "Ukraine",
	"us": "United States",
	"uy": "Uruguay",
	"ve": "Venezuela",
	"vn": "Vietnam",
	"za": "South Africa",
}

// CountryName resolves a two-letter flag code to a display name. Unknown
// codes resolve to "".
func CountryName(code string) string {
	if name, ok := countryNames[code]; ok {
		return name
	}
	return ""
}
