package config

import "testing"

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("expected the default configuration to validate, got %v", err)
	}
}

func TestValidateRejectsTooManyDisks(t *testing.T) {
	c := Default()
	c.Disks = make([]string, MaxDisks+1)
	if err := c.Validate(); err != ErrInvalidConfig {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestValidateRejectsTooManyInterfaces(t *testing.T) {
	c := Default()
	c.Interfaces = make([]string, MaxInterfaces+1)
	if err := c.Validate(); err != ErrInvalidConfig {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestValidateRejectsEmptyCommunity(t *testing.T) {
	c := Default()
	c.Community = ""
	if err := c.Validate(); err != ErrInvalidConfig {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestValidateRejectsBadPorts(t *testing.T) {
	for _, bad := range []int{0, -1, 65536, 100000} {
		c := Default()
		c.UDPPort = bad
		if err := c.Validate(); err != ErrInvalidConfig {
			t.Fatalf("UDP port %d: expected ErrInvalidConfig, got %v", bad, err)
		}
		c = Default()
		c.TCPPort = bad
		if err := c.Validate(); err != ErrInvalidConfig {
			t.Fatalf("TCP port %d: expected ErrInvalidConfig, got %v", bad, err)
		}
	}
}

func TestValidateRejectsNonPositiveTimeout(t *testing.T) {
	c := Default()
	c.TimeoutSec = 0
	if err := c.Validate(); err != ErrInvalidConfig {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestValidateRejectsMalformedVendorOID(t *testing.T) {
	c := Default()
	c.VendorOID = "not-an-oid"
	if err := c.Validate(); err != ErrInvalidConfig {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestTimeoutCentiseconds(t *testing.T) {
	c := Default()
	c.TimeoutSec = 5
	if got := c.TimeoutCentiseconds(); got != 500 {
		t.Fatalf("expected 500, got %d", got)
	}
}
