package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secint/internal/ioc"
)

func TestExtractAllMixedReport(t *testing.T) {
	e := New()
	text := `Observed beaconing to 45.61.49.78 over 443. Internal pivot via
192.168.1.1 and 10.0.0.5 (lab only). C2 domain evil-domain.xyz, dropper
fetched from http://malicious-site.biz/gate by the loader. Sample MD5
D41D8CD98F00B204E9800998ECF8427E, SHA256
e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855.
Tracked as CVE-2024-12345. Analyst contact: hunter@threat-desk.io.
See also https://example.com/writeup for background.`

	got := e.ExtractAll(text)

	assert.Equal(t, []string{"45.61.49.78"}, got[ioc.TypeIPv4])
	assert.Contains(t, got[ioc.TypeDomain], "evil-domain.xyz")
	assert.NotContains(t, got[ioc.TypeDomain], "example.com")
	assert.Equal(t, []string{"http://malicious-site.biz/gate"}, got[ioc.TypeURL])
	assert.Equal(t, []string{"d41d8cd98f00b204e9800998ecf8427e"}, got[ioc.TypeMD5])
	assert.Equal(t, []string{"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"}, got[ioc.TypeSHA256])
	assert.Equal(t, []string{"CVE-2024-12345"}, got[ioc.TypeCVE])
	assert.Equal(t, []string{"hunter@threat-desk.io"}, got[ioc.TypeEmail])
}

func TestExtractDropsPrivateAddresses(t *testing.T) {
	e := New()
	cases := []struct {
		ip   string
		keep bool
	}{
		{"127.0.0.1", false},
		{"10.1.2.3", false},
		{"172.16.0.1", false},
		{"172.31.255.1", false},
		{"172.32.0.1", true},
		{"192.168.100.1", false},
		{"169.254.1.1", false},
		{"224.0.0.1", false},
		{"8.8.4.4", true},
		{"45.61.49.78", true},
	}
	for _, tc := range cases {
		t.Run(tc.ip, func(t *testing.T) {
			got := e.ExtractByType("src="+tc.ip, ioc.TypeIPv4)
			if tc.keep {
				assert.Equal(t, []string{tc.ip}, got)
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestExtractDropsBenignDomains(t *testing.T) {
	e := New()
	got := e.ExtractByType("see google.com and github.com, then actual-c2.top", ioc.TypeDomain)
	assert.Equal(t, []string{"actual-c2.top"}, got)
}

func TestExtractCanonicalizesCase(t *testing.T) {
	e := New()

	domains := e.ExtractByType("EVIL-Domain.XYZ", ioc.TypeDomain)
	assert.Equal(t, []string{"evil-domain.xyz"}, domains)

	hashes := e.ExtractByType(strings.Repeat("AB", 20), ioc.TypeSHA1)
	assert.Equal(t, []string{strings.Repeat("ab", 20)}, hashes)
}

func TestExtractDeduplicatesAndSorts(t *testing.T) {
	e := New()
	got := e.ExtractByType("9.9.9.9 then 1.1.1.1 then 9.9.9.9 again", ioc.TypeIPv4)
	assert.Equal(t, []string{"1.1.1.1", "9.9.9.9"}, got)
}

func TestExtractHashTypesDoNotOverlap(t *testing.T) {
	e := New()
	sha256 := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

	got := e.ExtractAll("hash " + sha256)
	require.Contains(t, got, ioc.TypeSHA256)
	assert.NotContains(t, got, ioc.TypeMD5)
	assert.NotContains(t, got, ioc.TypeSHA1)
}

func TestExtractEmptyInput(t *testing.T) {
	e := New()
	assert.Empty(t, e.ExtractAll(""))
	assert.Nil(t, e.ExtractByType("", ioc.TypeIPv4))
}

func TestCount(t *testing.T) {
	e := New()
	counts := e.Count("1.1.1.1 and 8.8.8.8 hit bad-host.top")
	assert.Equal(t, 2, counts[ioc.TypeIPv4])
	assert.Equal(t, 1, counts[ioc.TypeDomain])
}
