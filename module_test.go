// module_test.go: Module handle, package-level API and policy tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package themis_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/agilira/themis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultModule(t *testing.T) {
	a, err := themis.Default()
	require.NoError(t, err)
	b, err := themis.Default()
	require.NoError(t, err)
	assert.Same(t, a, b)

	ready, err := themis.IsReady()
	require.NoError(t, err)
	assert.True(t, ready)
	assert.Equal(t, themis.StateReady, a.Status().State)
}

func TestPackageLevelFactories(t *testing.T) {
	calc, err := themis.CreateDerivationCalculator(&themis.HKDFParameters{
		Digest: themis.DigestSHA256,
		IKM:    seq(0, 22),
		Info:   []byte("themis"),
	})
	require.NoError(t, err)
	defer calc.Destroy()

	out, err := calc.GenerateBytes(42)
	require.NoError(t, err)
	assert.Len(t, out, 42)

	pp, err := themis.CreateAgreementPostProcessor(themis.AgreementConfig{
		Mode:   themis.AgreementDigest,
		Digest: themis.DigestSHA384,
	})
	require.NoError(t, err)
	key, err := pp.ProcessBytes(seq(7, 32))
	require.NoError(t, err)
	assert.Len(t, key, 48)

	_, err = themis.CreateDerivationCalculator(nil)
	assert.ErrorIs(t, err, themis.ErrInvalidParameter)
}

func TestModuleLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	m := newModule(t, themis.WithLogger(logger))
	assert.Same(t, logger, m.Logger())

	_, err := m.IsReady()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "themis boot completed")

	assert.NotNil(t, newModule(t).Logger(), "modules without a log config still have a logger")
}

func TestModuleWithProviderManager(t *testing.T) {
	pm := themis.NewProviderManager(nil, nil)
	require.NoError(t, pm.RegisterProvider("", themis.NewSoftwareProvider()))

	m, err := themis.NewModule(nil, themis.WithProviderManager(pm))
	require.NoError(t, err)

	calc, err := m.NewDerivationCalculator(themis.SP800108KATParameters(themis.PRFAESCMAC)[0])
	require.NoError(t, err)
	calc.Destroy()

	require.NoError(t, m.Close())
	_, err = m.NewDerivationCalculator(themis.SP800108KATParameters(themis.PRFAESCMAC)[0])
	assert.Error(t, err, "closed providers are unavailable")
}

func TestWithApprovedOnlyModeOverridesGlobal(t *testing.T) {
	t.Cleanup(func() { themis.SetApprovedOnlyMode(false) })
	themis.SetApprovedOnlyMode(true)

	m := newModule(t, themis.WithApprovedOnlyMode(false))
	z, err := m.X25519Agreement(seq(1, 32), seq(9, 32))
	require.NoError(t, err)
	z.Destroy()

	strict := newModule(t)
	_, err = strict.X25519Agreement(seq(1, 32), seq(9, 32))
	assert.ErrorIs(t, err, themis.ErrNotApproved)

	ok, err := strict.IsReady()
	assert.True(t, ok, "policy rejections do not affect module status")
	assert.NoError(t, err)
}

func TestIsApproved(t *testing.T) {
	tests := []struct {
		id   themis.AlgorithmIdentity
		want bool
	}{
		{themis.NewIdentity(themis.FamilyKDFCounter, string(themis.PRFHMACSHA256)), true},
		{themis.NewIdentity(themis.FamilyTLSPRFLegacy, themis.TLSLegacyVariation), true},
		{themis.NewIdentity(themis.FamilySRTPKDF, "AES-128"), true},
		{themis.NewIdentity(themis.FamilyHKDF, string(themis.DigestSHA512)), true},
		{themis.NewIdentity(themis.FamilyEntropy, themis.ContinuousVariation), true},
		{themis.NewIdentity(themis.FamilyAgreement, string(themis.AgreementMAC)), true},
		{themis.NewIdentity(themis.FamilyAgreement, string(themis.AgreementPassThrough)), false},
		{themis.NewIdentity(themis.FamilyX25519, ""), false},
		{themis.NewIdentity("Unknown", "x"), false},
	}

	for _, tt := range tests {
		t.Run(tt.id.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, themis.IsApproved(tt.id))
		})
	}
}

func TestAlgorithmIdentity(t *testing.T) {
	id := themis.NewIdentity(themis.FamilyKDFFeedback, string(themis.PRFAESCMAC))
	assert.Equal(t, "SP800-108-Feedback/AES-CMAC", id.String())
	assert.False(t, id.IsZero())

	assert.Equal(t, "X25519", themis.NewIdentity(themis.FamilyX25519, "").String())
	assert.True(t, themis.AlgorithmIdentity{}.IsZero())

	seen := map[themis.AlgorithmIdentity]bool{id: true}
	assert.True(t, seen[themis.NewIdentity(themis.FamilyKDFFeedback, "AES-CMAC")])
}

func TestPolicyErrorMessage(t *testing.T) {
	m := newModule(t, themis.WithApprovedOnlyMode(true))

	_, err := m.NewAgreementPostProcessor(themis.AgreementConfig{Mode: themis.AgreementPassThrough})
	require.Error(t, err)

	var pe *themis.PolicyError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, themis.NewIdentity(themis.FamilyAgreement, string(themis.AgreementPassThrough)), pe.Identity)
	assert.Contains(t, err.Error(), "policy rejected Agreement/PassThrough")
	assert.NotErrorIs(t, err, themis.ErrModuleFailed)
}
