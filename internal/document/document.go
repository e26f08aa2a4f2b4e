// Package document renders the contract text from its stored template.
package document

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/nurpe/lease-contracts/internal/model"
)

const blankSignatureLine = "________________________________________"

var (
	slotRE     = regexp.MustCompile(`\{\{\s*signature:([a-z]+)\s*\}\}`)
	imageTagRE = regexp.MustCompile(`<img src="[^"]*" alt="([a-z]+) signature"/>`)
)

var printer = message.NewPrinter(language.BrazilianPortuguese)

// Slot is the placeholder the template carries for a signer role.
func Slot(role model.SignerRole) string {
	return "{{signature:" + string(role) + "}}"
}

// Render replaces every signature slot in template. Roles without an entry
// in slots, and unknown roles, render as a blank signature line. The template
// itself is never modified, so rendering twice gives the same output.
func Render(template string, slots map[model.SignerRole]string) string {
	return slotRE.ReplaceAllStringFunc(template, func(m string) string {
		match := slotRE.FindStringSubmatch(m)
		if len(match) != 2 {
			return blankSignatureLine
		}
		role, ok := model.ParseSignerRole(match[1])
		if !ok {
			return blankSignatureLine
		}
		if v, ok := slots[role]; ok && v != "" {
			return v
		}
		return blankSignatureLine
	})
}

// SlotsFor builds the signature block of each signed role: the captured image
// inline, then the signing evidence.
func SlotsFor(c *model.Contract) map[model.SignerRole]string {
	slots := make(map[model.SignerRole]string, len(model.AllSignerRoles))
	for _, role := range model.AllSignerRoles {
		sig := c.SignatureFor(role)
		if !sig.IsSigned() {
			continue
		}
		line := fmt.Sprintf("[signed electronically on %s UTC from %s]",
			sig.SignedAt.UTC().Format("2006-01-02 15:04:05"), valueOr(sig.IP, "unknown address"))
		if img := strings.TrimSpace(sig.Image); img != "" {
			line = ImageTag(role, img) + " " + line
		}
		if sig.GeoConsent && sig.Latitude != nil && sig.Longitude != nil {
			line += fmt.Sprintf(" [location %.6f, %.6f]", *sig.Latitude, *sig.Longitude)
		}
		slots[role] = line
	}
	return slots
}

// ImageTag embeds a signature image. Raw base64 is taken as PNG.
func ImageTag(role model.SignerRole, image string) string {
	if !strings.HasPrefix(image, "data:") {
		image = "data:image/png;base64," + image
	}
	return fmt.Sprintf(`<img src="%s" alt="%s signature"/>`, html.EscapeString(image), role)
}

// StripImages replaces embedded signature images with a short marker, for
// text outputs that draw the images separately.
func StripImages(content string) string {
	return imageTagRE.ReplaceAllString(content, "[$1 signature image]")
}

// RenderContract is Render over the contract's own snapshot and signatures.
func RenderContract(c *model.Contract) string {
	return Render(c.ContentSnapshot, SlotsFor(c))
}

// DefaultTemplate builds the content snapshot for a newly created contract.
func DefaultTemplate(c *model.Contract, currency string, automaticClauses []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s LEASE AGREEMENT\n", c.ContractType)
	fmt.Fprintf(&b, "Verification token: %s\n\n", c.VerificationToken)

	b.WriteString("PARTIES\n")
	fmt.Fprintf(&b, "Landlord: %s\n", partyLine(c.Owner))
	fmt.Fprintf(&b, "Tenant: %s\n", partyLine(c.Tenant))
	if c.Property != nil {
		fmt.Fprintf(&b, "Property: %s, %s/%s\n", c.Property.Address, c.Property.City, c.Property.State)
	}
	b.WriteString("\nTERMS\n")
	fmt.Fprintf(&b, "Monthly rent: %s, due on day %d\n", Money(c.MonthlyRent, currency), c.DueDay)
	if c.Deposit > 0 {
		fmt.Fprintf(&b, "Deposit: %s\n", Money(c.Deposit, currency))
	}
	fmt.Fprintf(&b, "Term: %s to %s\n", dateOr(c.StartDate), dateOr(c.EndDate))
	if c.ReadjustmentIndex != "" {
		fmt.Fprintf(&b, "Adjustment: %s, yearly in month %d\n", c.ReadjustmentIndex, c.ReadjustmentMonth)
	}
	fmt.Fprintf(&b, "Guarantee: %s\n", valueOr(string(c.GuaranteeType), "none"))

	if strings.TrimSpace(c.Clauses) != "" {
		b.WriteString("\nCLAUSES\n")
		b.WriteString(strings.TrimSpace(c.Clauses))
		b.WriteString("\n")
	}
	if len(automaticClauses) > 0 {
		b.WriteString("\nGENERAL PROVISIONS\n")
		for i, clause := range automaticClauses {
			fmt.Fprintf(&b, "%d. %s\n", i+1, clause)
		}
	}

	b.WriteString("\nSIGNATURES\n")
	roles := c.RequiredSigners()
	if c.WitnessName != "" {
		roles = append(roles, model.SignerWitness)
	}
	for _, role := range roles {
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(string(role)), Slot(role))
	}
	return b.String()
}

// Money formats an amount the way Brazilian documents print it.
func Money(amount float64, currency string) string {
	formatted := printer.Sprintf("%.2f", amount)
	if currency == "" || currency == "BRL" {
		return "R$ " + formatted
	}
	return currency + " " + formatted
}

func partyLine(u *model.User) string {
	if u == nil {
		return "not informed"
	}
	if u.Document == "" {
		return u.Name
	}
	return fmt.Sprintf("%s (%s)", u.Name, u.Document)
}

func dateOr(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Format("02/01/2006")
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
