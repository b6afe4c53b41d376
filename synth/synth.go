package synth

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Synthesizer fabricates plausible replacement values for fields that are
// not identifier-shaped: names, organizations, addresses, dates, amounts.
// It is explicitly seeded and keeps its randomness away from the keyed
// pseudonymization path, which must stay deterministic. Replacements for
// the same name repeat within one instance, so a borrower mentioned five
// times in a document stays one consistent fake person; use one instance
// per document to stop those replacements from correlating across
// documents.
type Synthesizer struct {
	rng   *rand.Rand
	seed  int64
	names map[string]string
}

// New creates a synthesizer from an explicit seed
func New(seed int64) *Synthesizer {
	return &Synthesizer{
		rng:   rand.New(rand.NewSource(seed)),
		seed:  seed,
		names: make(map[string]string),
	}
}

// FitWidth pads value with trailing spaces or trims it so the result is
// exactly width bytes. Fixed-width reports only stay parseable if every
// replacement occupies the same columns as the original. A width of zero or
// less returns the value untouched.
func FitWidth(value string, width int) string {
	if width <= 0 || len(value) == width {
		return value
	}
	if len(value) < width {
		return value + strings.Repeat(" ", width-len(value))
	}
	return value[:width]
}

var firstNames = []string{
	"JAMES", "MARY", "ROBERT", "PATRICIA", "JOHN", "JENNIFER", "MICHAEL",
	"LINDA", "DAVID", "BARBARA", "WILLIAM", "SUSAN", "RICHARD", "JESSICA",
	"THOMAS", "KAREN", "CHARLES", "NANCY", "DANIEL", "MARGARET",
}

var lastNames = []string{
	"SMITH", "JOHNSON", "WILLIAMS", "BROWN", "JONES", "GARCIA", "MILLER",
	"DAVIS", "RODRIGUEZ", "MARTINEZ", "WILSON", "ANDERSON", "TAYLOR",
	"THOMAS", "MOORE", "JACKSON", "MARTIN", "LEE", "THOMPSON", "WHITE",
}

var companyStems = []string{
	"PINNACLE", "HARBOR", "SUMMIT", "CORNERSTONE", "MERIDIAN", "LIBERTY",
	"GRANITE", "BEACON", "HERITAGE", "FRONTIER", "CASCADE", "REDWOOD",
}

var companySuffixes = []string{
	"HOLDINGS", "GROUP", "PARTNERS", "INDUSTRIES", "ENTERPRISES", "LLC",
	"INC", "SUPPLY CO", "SERVICES", "& SONS",
}

var streetNames = []string{
	"OAK", "MAPLE", "CEDAR", "ELM", "WASHINGTON", "LAKE", "HILL", "PARK",
	"RIVER", "SUNSET", "HIGHLAND", "FOREST", "MEADOW", "WALNUT",
}

var streetSuffixes = []string{"ST", "AVE", "RD", "DR", "LN", "BLVD", "CT"}

var cityNames = []string{
	"SPRINGFIELD", "FAIRVIEW", "RIVERSIDE", "FRANKLIN", "GREENVILLE",
	"CLINTON", "SALEM", "MADISON", "GEORGETOWN", "ARLINGTON", "BRISTOL",
	"CLAYTON", "DAYTON", "MILFORD",
}

// Name replaces a personal or organizational name, consistently: the same
// original always maps to the same fake within this instance. County and
// bank-like names get shape-appropriate replacements.
func (s *Synthesizer) Name(original string) string {
	if strings.TrimSpace(original) == "" {
		return original
	}
	if cached, ok := s.names[original]; ok {
		return cached
	}

	upper := strings.ToUpper(original)
	var fake string
	switch {
	case strings.Contains(upper, "COUNTY"):
		fake = s.pick(cityNames) + " COUNTY"
	case strings.Contains(original, "&") || strings.Contains(upper, "BANK"):
		fake = s.company()
	default:
		fake = s.pick(firstNames) + " " + s.pick(lastNames)
	}

	fitted := FitWidth(fake, len(original))
	s.names[original] = fitted
	return fitted
}

// Company replaces an organization name
func (s *Synthesizer) Company(original string) string {
	return FitWidth(s.company(), len(original))
}

// Address replaces a street address
func (s *Synthesizer) Address(original string) string {
	fake := fmt.Sprintf("%d %s %s", 100+s.rng.Intn(9900), s.pick(streetNames), s.pick(streetSuffixes))
	return FitWidth(fake, len(original))
}

// City replaces a city or place name
func (s *Synthesizer) City(original string) string {
	return FitWidth(s.pick(cityNames), len(original))
}

// Letters replaces a value with random uppercase letters of the same length
func (s *Synthesizer) Letters(original string) string {
	out := make([]byte, len(original))
	for i := range out {
		out[i] = byte('A' + s.rng.Intn(26))
	}
	return string(out)
}

// Officer replaces a loan officer name or code. Codes (anything carrying a
// digit) become a fresh three-letter three-digit code; plain names go
// through Name.
func (s *Synthesizer) Officer(original string) string {
	if strings.TrimSpace(original) == "" {
		return original
	}
	hasDigit := false
	for i := 0; i < len(original); i++ {
		if original[i] >= '0' && original[i] <= '9' {
			hasDigit = true
			break
		}
	}
	if !hasDigit {
		return s.Name(original)
	}
	code := fmt.Sprintf("%c%c%c%03d",
		'A'+s.rng.Intn(26), 'A'+s.rng.Intn(26), 'A'+s.rng.Intn(26),
		s.rng.Intn(1000))
	return FitWidth(code, len(original))
}

// Reference replaces an alphanumeric reference with a stable 8-hex-char
// token derived from the seed and the original, so references keep their
// referential integrity for any synthesizer built from the same seed.
func (s *Synthesizer) Reference(original string) string {
	sum := md5.Sum([]byte(strconv.FormatInt(s.seed, 10) + "|" + original))
	return FitWidth(strings.ToUpper(hex.EncodeToString(sum[:]))[:8], len(original))
}

// dateLayouts pairs a shape test with the Go layout that reproduces it.
// Ordering matters: zero-padded shapes are tried before loose ones.
var dateLayouts = []struct {
	pattern *regexp.Regexp
	layout  string
}{
	{regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`), "2006-01-02"},
	{regexp.MustCompile(`^\d{2}-\d{2}-\d{4}$`), "01-02-2006"},
	{regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`), "01/02/2006"},
	{regexp.MustCompile(`^\d{2}/\d{2}/\d{2}$`), "01/02/06"},
	{regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{2}$`), "1/2/06"},
	{regexp.MustCompile(`^\d{2}-\d{2}-\d{2}$`), "06-01-02"},
	{regexp.MustCompile(`^\d{4}/\d{2}/\d{2}$`), "2006/01/02"},
	{regexp.MustCompile(`^\d{2}\.\d{2}\.\d{4}$`), "02.01.2006"},
	{regexp.MustCompile(`^[A-Za-z]{3} \d{1,2}, \d{4}$`), "Jan 2, 2006"},
	{regexp.MustCompile(`^[A-Za-z]{3} \d{1,2} \d{4}$`), "Jan 2 2006"},
	{regexp.MustCompile(`^\d{1,2} [A-Za-z]{3} \d{4}$`), "2 Jan 2006"},
	{regexp.MustCompile(`^[A-Za-z]{4,9} \d{1,2}, \d{4}$`), "January 2, 2006"},
	{regexp.MustCompile(`^\d{4}$`), "2006"},
}

// DetectDateLayout returns the Go time layout matching the original's
// shape, or false when the shape is not a recognized date format
func DetectDateLayout(original string) (string, bool) {
	trimmed := strings.TrimSpace(original)
	for _, dl := range dateLayouts {
		if dl.pattern.MatchString(trimmed) {
			return dl.layout, true
		}
	}
	return "", false
}

// Date replaces a date with a random one from the past twenty years,
// formatted in the original's detected layout. Unrecognized shapes fall
// back to ISO. The placeholder "00/00/00" stays as-is; spool reports use it
// for "no date" and rewriting it would invent information.
func (s *Synthesizer) Date(original string) string {
	trimmed := strings.TrimSpace(original)
	if trimmed == "" || trimmed == "00/00/00" {
		return original
	}

	fake := time.Now().AddDate(0, 0, -s.rng.Intn(20*365))
	layout, ok := DetectDateLayout(original)
	if !ok {
		return FitWidth(fake.Format("2006-01-02"), len(original))
	}
	return FitWidth(fake.Format(layout), len(original))
}

// Amount replaces a monetary amount with one varied by up to ten percent in
// either direction, keeping the original's currency sign, comma grouping
// and decimal places. Values that do not parse as numbers become a fresh
// random amount.
func (s *Synthesizer) Amount(original string) string {
	trimmed := strings.TrimSpace(original)
	clean := strings.NewReplacer("$", "", ",", "", " ", "").Replace(trimmed)
	parsed, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		fake := fmt.Sprintf("%d.%02d", 1+s.rng.Intn(9999), s.rng.Intn(100))
		return FitWidth(fake, len(original))
	}

	varied := parsed * (0.9 + 0.2*s.rng.Float64())

	decimals := 0
	if dot := strings.LastIndex(clean, "."); dot >= 0 {
		decimals = len(clean) - dot - 1
	}
	formatted := strconv.FormatFloat(varied, 'f', decimals, 64)
	if strings.Contains(trimmed, ",") {
		formatted = groupThousands(formatted)
	}
	if strings.HasPrefix(trimmed, "$") {
		formatted = "$" + formatted
	}
	return FitWidth(formatted, len(original))
}

// Rate replaces an interest rate with one shifted by up to half a point,
// keeping the original's decimal places
func (s *Synthesizer) Rate(original string) string {
	trimmed := strings.TrimSpace(original)
	clean := strings.TrimSuffix(trimmed, "%")
	parsed, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return FitWidth(fmt.Sprintf("%.2f", s.rng.Float64()*10), len(original))
	}

	varied := parsed + (s.rng.Float64() - 0.5)
	if varied < 0 {
		varied = 0
	}
	decimals := 2
	if dot := strings.LastIndex(clean, "."); dot >= 0 {
		decimals = len(clean) - dot - 1
	}
	formatted := strconv.FormatFloat(varied, 'f', decimals, 64)
	if strings.HasSuffix(trimmed, "%") {
		formatted += "%"
	}
	return FitWidth(formatted, len(original))
}

// Email replaces an email address with a synthetic one under example.com
func (s *Synthesizer) Email(original string) string {
	fake := strings.ToLower(s.pick(firstNames) + "." + s.pick(lastNames) + "@example.com")
	return FitWidth(fake, len(original))
}

func (s *Synthesizer) company() string {
	return s.pick(companyStems) + " " + s.pick(companySuffixes)
}

func (s *Synthesizer) pick(list []string) string {
	return list[s.rng.Intn(len(list))]
}

// groupThousands inserts commas into the integer part of a plain decimal
// string
func groupThousands(value string) string {
	intPart := value
	fracPart := ""
	if dot := strings.IndexByte(value, '.'); dot >= 0 {
		intPart, fracPart = value[:dot], value[dot:]
	}
	sign := ""
	if strings.HasPrefix(intPart, "-") {
		sign, intPart = "-", intPart[1:]
	}
	if len(intPart) <= 3 {
		return sign + intPart + fracPart
	}
	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	return sign + b.String() + fracPart
}
