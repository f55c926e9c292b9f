package wechat

import (
	"strings"
	"testing"

	"wxgate/internal/config"
)

func TestOnboardStatus_Unconfigured(t *testing.T) {
	ch := newTestChannel(t, nil)

	st := ch.OnboardStatus()
	if st.Configured {
		t.Error("channel without base URL should report unconfigured")
	}
	if !st.Enabled {
		t.Error("fresh channel should report enabled")
	}
}

func TestConfigure_RequiresBaseURL(t *testing.T) {
	ch := newTestChannel(t, nil)

	if err := ch.Configure("   ", "", ""); err == nil {
		t.Fatal("expected error for empty base URL")
	}
}

func TestConfigure_NormalizesAndEnables(t *testing.T) {
	disabled := false
	ch := newTestChannel(t, func(cfg *config.Config) {
		cfg.Channels.WeChat.Enabled = &disabled
	})

	if err := ch.Configure(" http://h/ ", " tok ", "work account"); err != nil {
		t.Fatal(err)
	}

	st := ch.OnboardStatus()
	if !st.Configured {
		t.Error("expected configured after Configure")
	}
	if !st.Enabled {
		t.Error("Configure must force the channel back on")
	}
	if st.BaseURL != "http://h" {
		t.Errorf("expected trailing slash stripped, got %q", st.BaseURL)
	}
	if !st.TokenSet {
		t.Error("expected token recorded")
	}
	if st.Name != "work account" {
		t.Errorf("expected name persisted, got %q", st.Name)
	}
}

func TestDisable_KeepsConfiguration(t *testing.T) {
	ch := newTestChannel(t, nil)

	if err := ch.Configure("http://h", "tok", ""); err != nil {
		t.Fatal(err)
	}
	if err := ch.Disable(); err != nil {
		t.Fatal(err)
	}

	st := ch.OnboardStatus()
	if st.Enabled {
		t.Error("expected disabled")
	}
	if !st.Configured || st.BaseURL != "http://h" || !st.TokenSet {
		t.Errorf("disable must not clear configuration: %+v", st)
	}
}

func TestNew_RequiresRuntime(t *testing.T) {
	_, err := New(nil)
	if err == nil {
		t.Fatal("expected error for nil runtime")
	}
	if !strings.Contains(err.Error(), "runtime") {
		t.Errorf("unexpected error: %v", err)
	}
}
