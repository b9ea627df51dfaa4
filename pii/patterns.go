// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pii

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/axonflow-gateway/mpc-gateway/mpcgw"
)

// Type identifies a category of PII pattern. The minimum recognized set
// (Email, Phone, SSN, CreditCard, IPAddress) maps 1:1 onto mpcgw.PIIType;
// the remaining types extend it and are opt-in via WithEnabledTypes.
type Type = mpcgw.PIIType

const (
	Email      Type = mpcgw.PIITypeEmail
	Phone      Type = mpcgw.PIITypePhone
	SSN        Type = mpcgw.PIITypeSSN
	CreditCard Type = mpcgw.PIITypeCreditCard
	IPAddress  Type = mpcgw.PIITypeIPAddress

	IBAN           Type = "iban"
	Passport       Type = "passport"
	DateOfBirth    Type = "date_of_birth"
	DriverLicense  Type = "driver_license"
	BankAccount    Type = "bank_account"
)

// Severity is the inherent risk level of a PII type, independent of the
// per-request risk scoring the events package derives from it.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// validator inspects a matched substring plus its surrounding context and
// reports whether the match is a genuine instance of the type, along with
// a confidence in [0,1].
type validator func(match, context string) (bool, float64)

type pattern struct {
	Type      Type
	Regexp    *regexp.Regexp
	Severity  Severity
	Validate  validator
	MinLength int
	MaxLength int
}

// defaultTypes is the minimum recognized set of spec.md §4.3, enabled when
// a Detector is built with no WithEnabledTypes option.
var defaultTypes = []Type{Email, Phone, SSN, CreditCard, IPAddress}

// allPatterns is the full pattern table; detector construction filters it
// down to the requested types.
var allPatterns = []*pattern{
	{
		Type:      SSN,
		Regexp:    regexp.MustCompile(`\b(\d{3})[- ]?(\d{2})[- ]?(\d{4})\b`),
		Severity:  SeverityCritical,
		Validate:  validateSSN,
		MinLength: 9,
		MaxLength: 11,
	},
	{
		Type:      CreditCard,
		Regexp:    regexp.MustCompile(`\b(?:4[0-9]{12}(?:[0-9]{3})?|5[1-5][0-9]{14}|3[47][0-9]{13}|6(?:011|5[0-9]{2})[0-9]{12}|3(?:0[0-5]|[68][0-9])[0-9]{11}|(?:2131|1800|35\d{3})\d{11})\b|\b(\d{4})[- ]?(\d{4})[- ]?(\d{4})[- ]?(\d{4})\b`),
		Severity:  SeverityCritical,
		Validate:  validateCreditCard,
		MinLength: 13,
		MaxLength: 19,
	},
	{
		Type:      Email,
		Regexp:    regexp.MustCompile(`\b[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}\b`),
		Severity:  SeverityMedium,
		Validate:  validateEmail,
		MinLength: 5,
		MaxLength: 254,
	},
	{
		Type:      Phone,
		Regexp:    regexp.MustCompile(`(?:\+?1[-.\s]?)?(?:\(?[0-9]{3}\)?[-.\s]?)?[0-9]{3}[-.\s]?[0-9]{4}\b|\+[0-9]{1,3}[-.\s]?[0-9]{6,14}\b`),
		Severity:  SeverityMedium,
		Validate:  validatePhone,
		MinLength: 7,
		MaxLength: 20,
	},
	{
		Type:      IPAddress,
		Regexp:    regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`),
		Severity:  SeverityMedium,
		Validate:  validateIPAddress,
		MinLength: 7,
		MaxLength: 15,
	},
	{
		Type:      IBAN,
		Regexp:    regexp.MustCompile(`\b[A-Z]{2}[0-9]{2}[A-Z0-9]{4}[0-9]{7}(?:[A-Z0-9]?){0,16}\b`),
		Severity:  SeverityCritical,
		Validate:  validateIBAN,
		MinLength: 15,
		MaxLength: 34,
	},
	{
		Type:      Passport,
		Regexp:    regexp.MustCompile(`\b[A-Z]{1,2}[0-9]{6,9}\b`),
		Severity:  SeverityHigh,
		Validate:  validatePassport,
		MinLength: 7,
		MaxLength: 11,
	},
	{
		Type:      DateOfBirth,
		Regexp:    regexp.MustCompile(`\b(?:(?:0?[1-9]|1[0-2])[/\-](?:0?[1-9]|[12][0-9]|3[01])[/\-](?:19|20)\d{2}|(?:19|20)\d{2}[/\-](?:0?[1-9]|1[0-2])[/\-](?:0?[1-9]|[12][0-9]|3[01]))\b`),
		Severity:  SeverityHigh,
		Validate:  validateDateOfBirth,
		MinLength: 8,
		MaxLength: 10,
	},
	{
		Type:      DriverLicense,
		Regexp:    regexp.MustCompile(`\b[A-Z][0-9]{7,14}\b|\b[0-9]{7,9}\b`),
		Severity:  SeverityHigh,
		Validate:  validateDriverLicense,
		MinLength: 7,
		MaxLength: 15,
	},
	{
		Type:      BankAccount,
		Regexp:    regexp.MustCompile(`\b[0-9]{9}[- ]?[0-9]{8,17}\b`),
		Severity:  SeverityCritical,
		Validate:  validateBankAccount,
		MinLength: 17,
		MaxLength: 27,
	},
}

func knownType(t Type) bool {
	for _, p := range allPatterns {
		if p.Type == t {
			return true
		}
	}
	return false
}

// --- validators -------------------------------------------------------
//
// Each validator returns (isValid, confidence). Format/checksum checks
// reject outright (confidence 0); everything that survives them gets a
// confidence built by weighing the surrounding text.
//
// Confidence is computed by weightedConfidence: a base rate for "matches
// the shape but says nothing about intent", nudged up when the context
// names the field and down when the context reads like an unrelated
// identifier (order numbers, serials, version strings). The base rates
// and keyword sets below are this gateway's own judgment calls, not a
// fixed standard — a future tuning pass might move them after seeing
// real traffic.

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// weightedConfidence starts from base and applies the first matching
// adjustment: a suppressing keyword (the text looks like something else
// entirely) always wins over a corroborating one, since a label like
// "order #" next to a number sequence is stronger evidence of intent than
// an accidental nearby word like "id".
func weightedConfidence(ctx string, base float64, suppress, corroborate []string, suppressed, corroborated float64) float64 {
	if containsAny(ctx, suppress) {
		return suppressed
	}
	if containsAny(ctx, corroborate) {
		return corroborated
	}
	return base
}

func validateSSN(match, context string) (bool, float64) {
	clean := digitsOnly(match)
	if len(clean) != 9 {
		return false, 0
	}

	area, _ := strconv.Atoi(clean[0:3])
	group, _ := strconv.Atoi(clean[3:5])
	serial, _ := strconv.Atoi(clean[5:9])

	if area == 0 || area == 666 || area >= 900 {
		return false, 0
	}
	if group == 0 || serial == 0 {
		return false, 0
	}

	ctx := strings.ToLower(context)
	conf := weightedConfidence(ctx, 0.62,
		[]string{"order number", "order reference", "order confirmation", "shipment", "tracking number", "invoice number", "purchase order", "sku", "serial number", "case number", "ticket number"},
		[]string{"social security", "ssn", "itin", "taxpayer id", "tax identification"},
		0.22, 0.9,
	)
	return true, conf
}

func luhnCheck(number string) bool {
	sum := 0
	alternate := false
	for i := len(number) - 1; i >= 0; i-- {
		digit := int(number[i] - '0')
		if alternate {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		alternate = !alternate
	}
	return sum%10 == 0
}

func identifyCardType(number string) string {
	if len(number) < 2 {
		return ""
	}
	prefix1 := int(number[0] - '0')
	prefix2, _ := strconv.Atoi(number[0:2])

	if len(number) >= 4 {
		prefix4, _ := strconv.Atoi(number[0:4])
		if prefix4 >= 3528 && prefix4 <= 3589 {
			return "jcb"
		}
		if prefix4 == 6011 || (prefix2 >= 64 && prefix2 <= 65) {
			return "discover"
		}
	}

	switch {
	case prefix1 == 4:
		return "visa"
	case prefix2 >= 51 && prefix2 <= 55:
		return "mastercard"
	case prefix2 >= 22 && prefix2 <= 27:
		return "mastercard"
	case prefix2 == 34 || prefix2 == 37:
		return "amex"
	case prefix2 == 36 || prefix2 == 38 || (prefix2 >= 30 && prefix2 <= 35):
		return "diners"
	}
	return ""
}

func validateCreditCard(match, context string) (bool, float64) {
	clean := digitsOnly(match)
	if len(clean) < 13 || len(clean) > 19 {
		return false, 0
	}
	if !luhnCheck(clean) {
		return false, 0
	}
	unknownNetwork := identifyCardType(clean) == ""

	ctx := strings.ToLower(context)
	conf := weightedConfidence(ctx, 0.8,
		[]string{"extension", "fax", "dial", "tel:"},
		[]string{"card number", "credit card", "debit card", "visa", "mastercard", "amex", "discover card", "cc#", "cc #", "charge to"},
		0.18, 0.93,
	)
	if unknownNetwork && conf > 0.58 {
		conf = 0.58
	}
	return true, conf
}

func validateEmail(match, context string) (bool, float64) {
	atIndex := strings.LastIndex(match, "@")
	if atIndex < 1 || atIndex >= len(match)-4 {
		return false, 0
	}
	domain := match[atIndex+1:]
	if !strings.Contains(domain, ".") {
		return false, 0
	}
	lastDot := strings.LastIndex(domain, ".")
	if len(domain)-lastDot-1 < 2 {
		return false, 0
	}
	if strings.Contains(match, "..") || strings.HasPrefix(match, ".") {
		return false, 0
	}

	if containsAny(strings.ToLower(domain), []string{
		"localhost", "mailinator.com",
		"guerrillamail.com", "yopmail.com", "10minutemail.com",
	}) {
		return true, 0.4
	}
	return true, 0.87
}

func isRepeatedDigits(s string) bool {
	if len(s) == 0 {
		return false
	}
	first := rune(s[0])
	for _, ch := range s {
		if ch != first {
			return false
		}
	}
	return true
}

func validatePhone(match, context string) (bool, float64) {
	digits := digitsOnly(match)
	if len(digits) < 7 || len(digits) > 15 {
		return false, 0
	}
	if isRepeatedDigits(digits) {
		return false, 0.05
	}

	ctx := strings.ToLower(context)
	conf := weightedConfidence(ctx, 0.55,
		[]string{"postal code", "zip code", "unit price", "line total", "quantity", "invoice total", "fiscal year"},
		[]string{"phone number", "call me", "mobile", "cell phone", "fax", "reach me", "dial"},
		0.15, 0.9,
	)
	return true, conf
}

func validateIPAddress(match, context string) (bool, float64) {
	parts := strings.Split(match, ".")
	if len(parts) != 4 {
		return false, 0
	}
	for _, part := range parts {
		num, err := strconv.Atoi(part)
		if err != nil || num < 0 || num > 255 {
			return false, 0
		}
	}

	if match == "0.0.0.0" || match == "255.255.255.255" ||
		strings.HasPrefix(match, "127.") || strings.HasPrefix(match, "192.168.") ||
		strings.HasPrefix(match, "10.") || strings.HasPrefix(match, "172.") {
		// RFC 1918 / reserved ranges identify a host, not a person, but a
		// gateway log line that ties one to a session is still worth a
		// modest flag rather than outright dismissal.
		return true, 0.35
	}

	ctx := strings.ToLower(context)
	if containsAny(ctx, []string{"version ", "v.", "release ", "build "}) {
		return false, 0.08
	}
	return true, 0.72
}

func validateIBANChecksum(iban string) bool {
	rearranged := iban[4:] + iban[0:4]
	var numeric strings.Builder
	for _, ch := range rearranged {
		if unicode.IsLetter(ch) {
			numeric.WriteString(strconv.Itoa(int(unicode.ToUpper(ch) - 'A' + 10)))
		} else {
			numeric.WriteRune(ch)
		}
	}
	remainder := 0
	for _, digit := range numeric.String() {
		remainder = (remainder*10 + int(digit-'0')) % 97
	}
	return remainder == 1
}

func validateIBAN(match, context string) (bool, float64) {
	clean := strings.ReplaceAll(strings.ToUpper(match), " ", "")
	if len(clean) < 15 || len(clean) > 34 {
		return false, 0
	}
	if !unicode.IsLetter(rune(clean[0])) || !unicode.IsLetter(rune(clean[1])) {
		return false, 0
	}
	if !validateIBANChecksum(clean) {
		return false, 0
	}
	// A checksum-valid IBAN has essentially no benign alternative reading,
	// so its confidence sits above the other formats even without context.
	return true, 0.84
}

func validatePassport(match, context string) (bool, float64) {
	if len(match) < 7 || len(match) > 11 {
		return false, 0
	}
	letterCount, digitCount := 0, 0
	for i, ch := range match {
		if unicode.IsLetter(ch) {
			if i > 1 {
				return false, 0
			}
			letterCount++
		} else if unicode.IsDigit(ch) {
			digitCount++
		} else {
			return false, 0
		}
	}
	if letterCount < 1 || letterCount > 2 || digitCount < 6 {
		return false, 0
	}

	ctx := strings.ToLower(context)
	if containsAny(ctx, []string{"passport number", "passport no", "travel document"}) {
		return true, 0.9
	}
	return true, 0.42
}

func validateDateOfBirth(match, context string) (bool, float64) {
	ctx := strings.ToLower(context)
	if containsAny(ctx, []string{"date of birth", "born on", "birthday", "d.o.b", "dob:"}) {
		return true, 0.9
	}
	// A bare date in this shape is just as often a deadline, anniversary,
	// or event date as a birth date, so the unlabeled base rate stays low.
	return true, 0.3
}

func validateDriverLicense(match, context string) (bool, float64) {
	if len(match) < 7 || len(match) > 15 {
		return false, 0
	}
	ctx := strings.ToLower(context)
	if containsAny(ctx, []string{"driver's license", "driving licence", "license number", "dmv", "dl#"}) {
		return true, 0.85
	}
	return true, 0.22
}

func validateABARoutingNumber(routing string) bool {
	if len(routing) != 9 || routing == "000000000" {
		return false
	}
	weights := []int{3, 7, 1, 3, 7, 1, 3, 7, 1}
	sum := 0
	for i, ch := range routing {
		sum += int(ch-'0') * weights[i]
	}
	return sum%10 == 0
}

func validateBankAccount(match, context string) (bool, float64) {
	clean := digitsOnly(match)
	if len(clean) < 17 || len(clean) > 26 {
		return false, 0
	}
	routing := clean[0:9]
	if !validateABARoutingNumber(routing) {
		// The leading 9 digits fail the ABA checksum, so this is most
		// likely an arbitrary long number rather than routing+account.
		return false, 0.15
	}
	ctx := strings.ToLower(context)
	if containsAny(ctx, []string{"routing number", "account number", "aba number", "ach transfer", "wire to"}) {
		return true, 0.9
	}
	return true, 0.6
}
