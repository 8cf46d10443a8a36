package wizard

import (
	"strings"
	"testing"

	"github.com/muurk/opcua-console/internal/config"
)

func TestValidate_Defaults(t *testing.T) {
	d := DefaultData()
	for _, s := range Steps() {
		if errs := d.Validate(s); len(errs) > 0 {
			t.Errorf("DefaultData().Validate(%s) = %v, want none", s, errs)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		step      Step
		modify    func(*Data)
		wantField string
	}{
		{"empty name", StepServer, func(d *Data) { d.Name = "  " }, "name"},
		{"bad endpoint", StepServer, func(d *Data) { d.Endpoint = "opc.tcp://:4840" }, "endpoint"},
		{"refresh too low", StepServer, func(d *Data) { d.RefreshRate = 99 }, "refreshRate"},
		{"refresh too high", StepServer, func(d *Data) { d.RefreshRate = 10001 }, "refreshRate"},
		{"unknown mode", StepSecurity, func(d *Data) { d.SecurityMode = "encrypt" }, "securityMode"},
		{"unknown policy", StepSecurity, func(d *Data) { d.SecurityPolicy = "Basic512" }, "securityPolicy"},
		{"mode none with policy", StepSecurity, func(d *Data) { d.SecurityMode = config.SecurityModeNone }, "securityPolicy"},
		{"username missing", StepSecurity, func(d *Data) { d.AuthType = config.AuthUsername; d.Password = "pw" }, "username"},
		{"password missing", StepSecurity, func(d *Data) { d.AuthType = config.AuthUsername; d.Username = "op" }, "password"},
		{"unknown auth", StepSecurity, func(d *Data) { d.AuthType = "kerberos" }, "authenticationType"},
		{"bad node", StepObjects, func(d *Data) { d.Nodes = []string{"i=85", "node-1"} }, "nodes"},
		{"bad buffer", StepObjects, func(d *Data) { d.Subscription.BufferSize = 0 }, "bufferSize"},
		{"bad priority", StepAdvanced, func(d *Data) { d.Priority = "urgent" }, "priority"},
		{"review sees server", StepReview, func(d *Data) { d.Endpoint = "" }, "endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DefaultData()
			tt.modify(&d)
			errs := d.Validate(tt.step)
			if errs.For(tt.wantField) == "" {
				t.Errorf("Validate(%s) = %v, want error for %s", tt.step, errs, tt.wantField)
			}
		})
	}
}

func TestValidate_OtherStepsIgnored(t *testing.T) {
	d := DefaultData()
	d.Priority = "urgent"
	if errs := d.Validate(StepServer); len(errs) != 0 {
		t.Errorf("Validate(server) = %v, want only server fields checked", errs)
	}
}

func TestValidate_UsernameAuthComplete(t *testing.T) {
	d := DefaultData()
	d.AuthType = config.AuthUsername
	d.Username = "operator"
	d.Password = "secret"
	if errs := d.Validate(StepSecurity); len(errs) != 0 {
		t.Errorf("Validate(security) = %v", errs)
	}
}

func TestFieldErrors(t *testing.T) {
	var none FieldErrors
	if none.Err() != nil {
		t.Error("empty FieldErrors.Err() should be nil")
	}

	errs := FieldErrors{{Field: "a", Message: "bad a"}, {Field: "b", Message: "bad b"}}
	if errs.Error() != "a: bad a; b: bad b" {
		t.Errorf("Error() = %q", errs.Error())
	}
	if errs.For("b") != "bad b" || errs.For("c") != "" {
		t.Error("For() lookup failed")
	}
}

func TestToBroker(t *testing.T) {
	d := DefaultData()
	d.Name = "  Line 1  "
	d.AuthType = config.AuthUsername
	d.Username = "operator"
	d.Password = "secret"
	d.Nodes = []string{"ns=2;s=Line1.Speed"}
	d.Subscription.Mode = config.AcquisitionSubscription

	b := d.ToBroker()

	if b.Name != "Line 1" {
		t.Errorf("Name = %q, want trimmed", b.Name)
	}
	if b.Username != "operator" || b.AuthType != config.AuthUsername {
		t.Errorf("auth = %s/%s", b.AuthType, b.Username)
	}
	if b.Acquisition == nil || b.Acquisition.Mode != config.AcquisitionSubscription || b.Acquisition.PublishingInterval != 1000 {
		t.Errorf("Acquisition = %+v", b.Acquisition)
	}
	if b.Acquisition.PollingInterval != 0 {
		t.Error("polling fields should be omitted in subscription mode")
	}

	d.Nodes[0] = "i=1"
	if b.Nodes[0] != "ns=2;s=Line1.Speed" {
		t.Error("ToBroker() should copy the node list")
	}
}

func TestToBroker_AnonymousDropsUsername(t *testing.T) {
	d := DefaultData()
	d.Username = "leftover"
	if b := d.ToBroker(); b.Username != "" {
		t.Errorf("Username = %q, want empty for anonymous auth", b.Username)
	}
}

func TestFromBroker_RoundTrip(t *testing.T) {
	d := DefaultData()
	d.BrokerID = "id-1"
	d.Name = "Packaging"
	d.Priority = config.PriorityHigh
	d.EnableDiagnostics = false
	d.Subscription.Mode = config.AcquisitionSubscription
	d.Subscription.LifetimeCount = 50

	got := FromBroker(d.ToBroker())
	if got.BrokerID != "id-1" || got.Name != "Packaging" || got.Priority != config.PriorityHigh {
		t.Errorf("FromBroker() = %+v", got)
	}
	if got.EnableDiagnostics {
		t.Error("EnableDiagnostics should round-trip as false")
	}
	if got.Subscription.Mode != config.AcquisitionSubscription || got.Subscription.LifetimeCount != 50 {
		t.Errorf("Subscription = %+v", got.Subscription)
	}
	if got.Subscription.BufferSize != 10 {
		t.Errorf("unused polling field BufferSize = %d, want default 10", got.Subscription.BufferSize)
	}

	if FromBroker(nil).Name != DefaultData().Name {
		t.Error("FromBroker(nil) should return defaults")
	}
}

func TestSubscriptionValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Subscription)
		valid  bool
	}{
		{"defaults", func(s *Subscription) {}, true},
		{"polling min", func(s *Subscription) { s.PollingInterval = 100; s.BufferSize = 1 }, true},
		{"polling max", func(s *Subscription) { s.PollingInterval = 10000; s.BufferSize = 100 }, true},
		{"polling too fast", func(s *Subscription) { s.PollingInterval = 99 }, false},
		{"buffer too big", func(s *Subscription) { s.BufferSize = 101 }, false},
		{"subscription ok", func(s *Subscription) { s.Mode = config.AcquisitionSubscription }, true},
		{"subscription ignores polling", func(s *Subscription) { s.Mode = config.AcquisitionSubscription; s.PollingInterval = 0 }, true},
		{"publishing too slow", func(s *Subscription) { s.Mode = config.AcquisitionSubscription; s.PublishingInterval = 20000 }, false},
		{"keep-alive zero", func(s *Subscription) { s.Mode = config.AcquisitionSubscription; s.MaxKeepAliveCount = 0 }, false},
		{"lifetime too big", func(s *Subscription) { s.Mode = config.AcquisitionSubscription; s.LifetimeCount = 101 }, false},
		{"unknown mode", func(s *Subscription) { s.Mode = "push" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSubscription()
			tt.modify(&s)
			errs := s.Validate()
			if (len(errs) == 0) != tt.valid {
				t.Errorf("Validate() = %v, valid want %v", errs, tt.valid)
			}
		})
	}
}

func TestSummary(t *testing.T) {
	d := DefaultData()
	d.AuthType = config.AuthUsername
	d.Username = "operator"
	d.Nodes = []string{"i=2258", "i=2259"}

	out := FormatSummary(d.Summary())

	for _, want := range []string{
		"=== Server Configuration ===",
		"Server Name:",
		"Production OPC UA Broker",
		"1000 ms",
		"Security Mode:    Sign",
		"Username/Password (operator)",
		"Anonymous Access: Enabled",
		"2 selected",
		"Polling (1000 ms, buffer 10)",
		"Performance Mode: Normal",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatSummary() missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "secret") {
		t.Error("summary must not include the password")
	}
}
