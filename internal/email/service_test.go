package email

import (
	"strings"
	"testing"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "missing host",
			config: Config{
				Port: "587",
				From: "plans@example.com",
			},
			expected: false,
		},
		{
			name: "missing from",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
			},
			expected: false,
		},
		{
			name: "fully configured",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
				From: "plans@example.com",
			},
			expected: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewService(tc.config)
			if got := svc.IsConfigured(); got != tc.expected {
				t.Fatalf("IsConfigured() = %v, want %v", got, tc.expected)
			}
		})
	}
}

func TestSendEmailUnconfigured(t *testing.T) {
	svc := NewService(Config{})
	if err := svc.SendEmail([]string{"a@example.com"}, "subject", "body"); err == nil {
		t.Fatal("expected error when SMTP is not configured")
	}
	if err := svc.SendHTMLEmail([]string{"a@example.com"}, "subject", "<p>body</p>"); err == nil {
		t.Fatal("expected error when SMTP is not configured")
	}
}

func TestPlanReadyTemplateRenders(t *testing.T) {
	html, err := renderTemplate(planReadyEmailTemplate, ReadinessData{
		AppName:     "Planwright",
		UserName:    "Avery",
		PlanTitle:   "Bakery on Main",
		Score:       92,
		GatesPassed: 7,
		GatesTotal:  7,
	})
	if err != nil {
		t.Fatalf("renderTemplate() error = %v", err)
	}
	for _, want := range []string{"Avery", "Bakery on Main", "92/100", "7 of 7"} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered email missing %q", want)
		}
	}
}

func TestExportTemplateMarksDrafts(t *testing.T) {
	html, err := renderTemplate(exportEmailTemplate, ExportData{
		AppName:   "Planwright",
		UserName:  "Avery",
		PlanTitle: "Bakery on Main",
		Format:    "PDF",
		Draft:     true,
	})
	if err != nil {
		t.Fatalf("renderTemplate() error = %v", err)
	}
	if !strings.Contains(html, "Draft") {
		t.Error("draft export email missing draft warning")
	}

	html, err = renderTemplate(exportEmailTemplate, ExportData{
		AppName:   "Planwright",
		UserName:  "Avery",
		PlanTitle: "Bakery on Main",
		Format:    "PDF",
		Draft:     false,
	})
	if err != nil {
		t.Fatalf("renderTemplate() error = %v", err)
	}
	if strings.Contains(html, "Draft:") {
		t.Error("final export email should not carry draft warning")
	}
}
