package pdf

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/lease-contracts/internal/model"
)

func pngSignature(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	img.Set(1, 1, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestGenerateContractStages(t *testing.T) {
	signedAt := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)
	c := model.Contract{ID: 3, VerificationToken: "MR3X-CTR-2025-12345-67890"}
	c.TenantSignature = model.Signature{SignedAt: &signedAt, Image: pngSignature(t)}
	c.OwnerSignature = model.Signature{SignedAt: &signedAt, Image: "not-an-image"}

	g := NewGenerator("BRL")
	for _, stage := range []model.DocumentStage{model.DocumentProvisional, model.DocumentFinal} {
		out, err := g.GenerateContract(model.ContractDocument{
			Stage:       stage,
			Contract:    c,
			Content:     "RESIDENTIAL LEASE AGREEMENT\n\nLocação em São Paulo",
			ContentHash: "abc",
			GeneratedAt: signedAt,
		})
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	}
}

func TestGenerateDossier(t *testing.T) {
	out, err := NewGenerator("BRL").GenerateDossier(model.JudicialDossier{
		Contract:     model.ContractSummary{ContractID: 3, TenantName: "João"},
		Timeline:     []model.TimelineEntry{{Date: time.Now(), Type: "DEFAULT_DECLARED", Description: "Default declared"}},
		LegalBasis:   []string{"Código Civil, art. 397"},
		MissingItems: []string{"final signed PDF"},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestDecodeImage(t *testing.T) {
	_, kind, ok := decodeImage(pngSignature(t))
	assert.True(t, ok)
	assert.Equal(t, "PNG", kind)

	_, _, ok = decodeImage("aGVsbG8=")
	assert.False(t, ok)
}
