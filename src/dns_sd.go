package lockin

/*------------------------------------------------------------------
 *
 * Purpose:	Announce the TCP control service using DNS-SD.
 *
 * Description:	Uses the pure-Go github.com/brutella/dnssd package for
 *		cross-platform mDNS/DNS-SD announcement, with no system
 *		daemon or cgo dependency.
 *
 *------------------------------------------------------------------*/

import (
	"context"
	"os"
	"strings"

	"github.com/brutella/dnssd"
)

// DnsSdServiceType is the DNS-SD service type announced for the TCP
// control/telemetry port.
const DnsSdServiceType = "_feedbacklockin._tcp"

// AnnounceDnsSd advertises the TCP control service at port over mDNS. A
// responder failure is logged and leaves DNS-SD simply not announced;
// it never prevents the TCP server itself from serving.
func AnnounceDnsSd(ctx context.Context, port int, name string) {
	if name == "" {
		name = defaultServiceName()
	}

	cfg := dnssd.Config{ //nolint:exhaustruct
		Name: name,
		Type: DnsSdServiceType,
		Port: port,
	}

	sv, err := dnssd.NewService(cfg)
	if err != nil {
		Log.Error("dns-sd: failed to create service", "err", err)
		return
	}

	rp, err := dnssd.NewResponder()
	if err != nil {
		Log.Error("dns-sd: failed to create responder", "err", err)
		return
	}

	if _, err := rp.Add(sv); err != nil {
		Log.Error("dns-sd: failed to add service", "err", err)
		return
	}

	Log.Info("dns-sd: announcing", "port", port, "name", name, "type", DnsSdServiceType)

	go func() {
		if err := rp.Respond(ctx); err != nil {
			Log.Error("dns-sd: responder stopped", "err", err)
		}
	}()
}

// defaultServiceName returns "Feedback Lock-in on <hostname>", falling
// back to a bare name when the hostname is unavailable.
func defaultServiceName() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "Feedback Lock-in"
	}

	hostname, _, _ = strings.Cut(hostname, ".")

	return "Feedback Lock-in on " + hostname
}
