package chartdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// CountryInfo is one row of the country reference table.
type CountryInfo struct {
	ISO3      string
	Name      string
	Continent string
}

// CountryTable maps lowercase two-letter chart region codes to country
// metadata. It is a read-only lookup collaborator for the loader.
type CountryTable map[string]CountryInfo

// DefaultCountryTable covers the chart regions present in the streaming
// dataset. Callers with other datasets load their own table via
// LoadCountryTable.
func DefaultCountryTable() CountryTable {
	return CountryTable{
		"ar": {"ARG", "Argentina", "South America"},
		"at": {"AUT", "Austria", "Europe"},
		"au": {"AUS", "Australia", "Oceania"},
		"be": {"BEL", "Belgium", "Europe"},
		"bg": {"BGR", "Bulgaria", "Europe"},
		"bo": {"BOL", "Bolivia", "South America"},
		"br": {"BRA", "Brazil", "South America"},
		"ca": {"CAN", "Canada", "North America"},
		"ch": {"CHE", "Switzerland", "Europe"},
		"cl": {"CHL", "Chile", "South America"},
		"co": {"COL", "Colombia", "South America"},
		"cr": {"CRI", "Costa Rica", "North America"},
		"cy": {"CYP", "Cyprus", "Europe"},
		"cz": {"CZE", "Czechia", "Europe"},
		"de": {"DEU", "Germany", "Europe"},
		"dk": {"DNK", "Denmark", "Europe"},
		"do": {"DOM", "Dominican Republic", "North America"},
		"ec": {"ECU", "Ecuador", "South America"},
		"ee": {"EST", "Estonia", "Europe"},
		"es": {"ESP", "Spain", "Europe"},
		"fi": {"FIN", "Finland", "Europe"},
		"fr": {"FRA", "France", "Europe"},
		"gb": {"GBR", "United Kingdom", "Europe"},
		"gr": {"GRC", "Greece", "Europe"},
		"gt": {"GTM", "Guatemala", "North America"},
		"hk": {"HKG", "Hong Kong", "Asia"},
		"hn": {"HND", "Honduras", "North America"},
		"hu": {"HUN", "Hungary", "Europe"},
		"id": {"IDN", "Indonesia", "Asia"},
		"ie": {"IRL", "Ireland", "Europe"},
		"il": {"ISR", "Israel", "Asia"},
		"in": {"IND", "India", "Asia"},
		"is": {"ISL", "Iceland", "Europe"},
		"it": {"ITA", "Italy", "Europe"},
		"jp": {"JPN", "Japan", "Asia"},
		"lt": {"LTU", "Lithuania", "Europe"},
		"lu": {"LUX", "Luxembourg", "Europe"},
		"lv": {"LVA", "Latvia", "Europe"},
		"mx": {"MEX", "Mexico", "North America"},
		"my": {"MYS", "Malaysia", "Asia"},
		"ni": {"NIC", "Nicaragua", "North America"},
		"nl": {"NLD", "Netherlands", "Europe"},
		"no": {"NOR", "Norway", "Europe"},
		"nz": {"NZL", "New Zealand", "Oceania"},
		"pa": {"PAN", "Panama", "North America"},
		"pe": {"PER", "Peru", "South America"},
		"ph": {"PHL", "Philippines", "Asia"},
		"pl": {"POL", "Poland", "Europe"},
		"pt": {"PRT", "Portugal", "Europe"},
		"py": {"PRY", "Paraguay", "South America"},
		"ro": {"ROU", "Romania", "Europe"},
		"se": {"SWE", "Sweden", "Europe"},
		"sg": {"SGP", "Singapore", "Asia"},
		"sk": {"SVK", "Slovakia", "Europe"},
		"sv": {"SLV", "El Salvador", "North America"},
		"th": {"THA", "Thailand", "Asia"},
		"tr": {"TUR", "Turkey", "Asia"},
		"tw": {"TWN", "Taiwan", "Asia"},
		"us": {"USA", "United States", "North America"},
		"uy": {"URY", "Uruguay", "South America"},
		"vn": {"VNM", "Vietnam", "Asia"},
	}
}

// LoadCountryTable reads a reference table from a CSV file with columns
// code, iso3, name, continent (header required).
func LoadCountryTable(path string) (CountryTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open country table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read country table header: %w", err)
	}
	col, err := columnIndex(header, "code", "iso3", "name", "continent")
	if err != nil {
		return nil, fmt.Errorf("country table: %w", err)
	}

	table := make(CountryTable)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read country table: %w", err)
		}
		code := strings.ToLower(strings.TrimSpace(rec[col["code"]]))
		table[code] = CountryInfo{
			ISO3:      strings.TrimSpace(rec[col["iso3"]]),
			Name:      strings.TrimSpace(rec[col["name"]]),
			Continent: strings.TrimSpace(rec[col["continent"]]),
		}
	}
	return table, nil
}

// columnIndex maps required column names to their positions in the header.
func columnIndex(header []string, required ...string) (map[string]int, error) {
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range required {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	return col, nil
}
