package document

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nurpe/lease-contracts/internal/model"
)

func TestRenderFillsSignedSlotsOnly(t *testing.T) {
	tmpl := "TENANT: {{signature:tenant}}\nOWNER: {{ signature:owner }}\nX: {{signature:nobody}}"

	out := Render(tmpl, map[model.SignerRole]string{model.SignerTenant: "[signed]"})

	assert.Equal(t, "TENANT: [signed]\nOWNER: "+blankSignatureLine+"\nX: "+blankSignatureLine, out)
}

func TestRenderContractIsIdempotent(t *testing.T) {
	signedAt := time.Date(2025, 2, 1, 10, 30, 0, 0, time.UTC)
	lat, lng := -23.55, -46.63
	c := &model.Contract{
		ContractType:      model.ContractTypeResidential,
		VerificationToken: "MR3X-CTR-2025-00001-00002",
		Tenant:            &model.User{Name: "Ana", Document: "111"},
		Owner:             &model.User{Name: "Bruno"},
	}
	c.MonthlyRent = 1500
	c.ContentSnapshot = DefaultTemplate(c, "BRL", []string{"First general clause."})
	c.TenantSignature = model.Signature{Image: "data:image/png;base64,TENANTIMG", SignedAt: &signedAt, IP: "10.0.0.9", GeoConsent: true, Latitude: &lat, Longitude: &lng}

	first := RenderContract(c)
	second := Render(first, SlotsFor(c))
	again := RenderContract(c)

	assert.Equal(t, first, again)
	assert.Equal(t, first, second)
	assert.Contains(t, first, "[signed electronically on 2025-02-01 10:30:00 UTC from 10.0.0.9]")
	assert.Contains(t, first, "[location -23.550000, -46.630000]")
	assert.Equal(t, 1, strings.Count(first, blankSignatureLine))
	assert.Contains(t, c.ContentSnapshot, Slot(model.SignerOwner))
	assert.Equal(t, 1, strings.Count(first, `<img src="data:image/png;base64,TENANTIMG" alt="tenant signature"/>`))

	c.OwnerSignature = model.Signature{Image: "OWNERIMG", SignedAt: &signedAt, IP: "10.0.0.8"}
	both := RenderContract(c)
	assert.Equal(t, both, RenderContract(c))
	assert.Equal(t, 1, strings.Count(both, "TENANTIMG"))
	assert.Equal(t, 1, strings.Count(both, `<img src="data:image/png;base64,OWNERIMG" alt="owner signature"/>`))
	assert.Zero(t, strings.Count(both, blankSignatureLine))
}

func TestStripImagesKeepsEvidence(t *testing.T) {
	content := "TENANT: " + ImageTag(model.SignerTenant, "data:image/png;base64,AAAA") + " [signed electronically]"

	assert.Equal(t, "TENANT: [tenant signature image] [signed electronically]", StripImages(content))
}

func TestDefaultTemplateIncludesWitnessWhenNamed(t *testing.T) {
	agency := int64(4)
	c := &model.Contract{AgencyID: &agency, WitnessName: "Carla"}

	tmpl := DefaultTemplate(c, "BRL", nil)

	for _, role := range model.AllSignerRoles {
		assert.Contains(t, tmpl, Slot(role))
	}
	assert.Contains(t, tmpl, "Landlord: not informed")
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "R$ 1.234,50", Money(1234.5, "BRL"))
	assert.Equal(t, "USD 10,00", Money(10, "USD"))
}
