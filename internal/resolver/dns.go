package resolver

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// WhoamiName is answered by Cloudflare's resolvers with the querier's
// address when asked for TXT in the CHAOS class.
const WhoamiName = "whoami.cloudflare."

// DNSServers are the resolvers queried in dns detection mode, primary first.
var DNSServers = map[Family][2]string{
	IPv4: {"1.1.1.1:53", "1.0.0.1:53"},
	IPv6: {"[2606:4700:4700::1111]:53", "[2606:4700:4700::1001]:53"},
}

// DNSSource asks a resolver for whoami.cloudflare TXT/CH.
type DNSSource struct {
	Server string
	client *dns.Client
}

// NewDNSSource creates a source pinned to the family's UDP transport.
func NewDNSSource(server string, f Family) *DNSSource {
	network := "udp4"
	if f == IPv6 {
		network = "udp6"
	}
	return &DNSSource{
		Server: server,
		client: &dns.Client{Net: network, Timeout: 5 * time.Second},
	}
}

func (s *DNSSource) String() string { return "dns://" + s.Server }

// Lookup sends one query and returns the first TXT string as an address.
func (s *DNSSource) Lookup(ctx context.Context) (netip.Addr, error) {
	m := new(dns.Msg)
	m.SetQuestion(WhoamiName, dns.TypeTXT)
	m.Question[0].Qclass = dns.ClassCHAOS

	r, _, err := s.client.ExchangeContext(ctx, m, s.Server)
	if err != nil {
		return netip.Addr{}, err
	}
	if r.Rcode != dns.RcodeSuccess {
		return netip.Addr{}, fmt.Errorf("rcode %s", dns.RcodeToString[r.Rcode])
	}
	for _, rr := range r.Answer {
		if txt, ok := rr.(*dns.TXT); ok && len(txt.Txt) > 0 {
			return netip.ParseAddr(strings.TrimSpace(txt.Txt[0]))
		}
	}
	return netip.Addr{}, ErrMissingIP
}
