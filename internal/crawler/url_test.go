package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSiteRoot(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "http://acme.test", want: "http://acme.test"},
		{in: "https://acme.test/about?x=1", want: "https://acme.test"},
		{in: "HTTPS://acme.test:8443/", want: "https://acme.test:8443"},
		{in: "acme.test/home", want: "http://acme.test"},
	}
	for _, tt := range tests {
		got, err := SiteRoot(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := SiteRoot("http://")
	assert.Error(t, err)
}

func TestResolveReference(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		base    string
		href    string
		want    string
		wantErr bool
	}{
		{name: "relative path", base: "http://acme.test", href: "/careers", want: "http://acme.test/careers"},
		{name: "relative to page", base: "http://acme.test/about/", href: "jobs.html", want: "http://acme.test/about/jobs.html"},
		{name: "absolute", base: "http://acme.test", href: "https://boards.example.com/acme", want: "https://boards.example.com/acme"},
		{name: "fragment dropped", base: "http://acme.test", href: "/careers#open", want: "http://acme.test/careers"},
		{name: "mailto rejected", base: "http://acme.test", href: "mailto:jobs@acme.test", wantErr: true},
		{name: "javascript rejected", base: "http://acme.test", href: "javascript:applyNow()", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ResolveReference(tt.base, tt.href)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
