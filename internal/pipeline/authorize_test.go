package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakePolicyStore struct {
	policies map[string]DomainPolicy
}

func (f *fakePolicyStore) ActivePolicies(context.Context) ([]DomainPolicy, error) {
	out := make([]DomainPolicy, 0, len(f.policies))
	for _, p := range f.policies {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePolicyStore) GetPolicy(_ context.Context, domain string) (DomainPolicy, bool, error) {
	p, ok := f.policies[domain]
	return p, ok, nil
}

func (f *fakePolicyStore) SetLastDiscovered(context.Context, string, time.Time) error {
	return nil
}

func TestAuthorize(t *testing.T) {
	t.Parallel()

	store := &fakePolicyStore{policies: map[string]DomainPolicy{
		"fda.gov": {Domain: "fda.gov", Active: true},
		"ftc.gov": {Domain: "ftc.gov", Active: false},
	}}

	domain, err := Authorize(context.Background(), store, "https://www.fda.gov/guidance/doc-1")
	require.NoError(t, err)
	require.Equal(t, "fda.gov", domain)

	_, err = Authorize(context.Background(), store, "https://not-allowed.example.com/doc")
	require.True(t, IsAuthorization(err))

	// Inactive policies are not authorized.
	_, err = Authorize(context.Background(), store, "https://ftc.gov/enforcement/x")
	require.True(t, IsAuthorization(err))
}

func TestDomainOf(t *testing.T) {
	t.Parallel()

	d, err := DomainOf("https://WWW.FDA.gov:8443/path?q=1")
	require.NoError(t, err)
	require.Equal(t, "fda.gov", d)

	_, err = DomainOf("not a url ::")
	require.Error(t, err)
}
