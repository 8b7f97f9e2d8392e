package templates_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/notifykit/pkg/templates"
)

func TestTemplate_Render(t *testing.T) {
	t.Parallel()

	tmpl := templates.Template{
		ID:      "welcome_email",
		Channel: "email",
		Subject: "Welcome, {{name}}!",
		Body:    "Hi {{name}}, your account {{account_id}} is ready.",
	}

	t.Run("substitutes all placeholders", func(t *testing.T) {
		t.Parallel()

		subject, body := tmpl.Render(map[string]string{
			"name":       "Ada",
			"account_id": "acc-7",
		})
		assert.Equal(t, "Welcome, Ada!", subject)
		assert.Equal(t, "Hi Ada, your account acc-7 is ready.", body)
	})

	t.Run("unresolved placeholders stay literal", func(t *testing.T) {
		t.Parallel()

		subject, body := tmpl.Render(map[string]string{"name": "Ada"})
		assert.Equal(t, "Welcome, Ada!", subject)
		assert.Equal(t, "Hi Ada, your account {{account_id}} is ready.", body)
	})

	t.Run("empty data leaves text untouched", func(t *testing.T) {
		t.Parallel()

		subject, body := tmpl.Render(nil)
		assert.Equal(t, tmpl.Subject, subject)
		assert.Equal(t, tmpl.Body, body)
	})

	t.Run("whitespace inside markers", func(t *testing.T) {
		t.Parallel()

		spaced := templates.Template{ID: "x", Channel: "sms", Body: "Code: {{ code }}"}
		_, body := spaced.Render(map[string]string{"code": "123456"})
		assert.Equal(t, "Code: 123456", body)
	})
}

func TestTemplate_CheckVariables(t *testing.T) {
	t.Parallel()

	tmpl := templates.Template{
		ID:                "order_sms",
		Channel:           "sms",
		Body:              "Order {{order_id}} shipped to {{city}}.",
		RequiredVariables: []string{"order_id", "city"},
	}

	assert.NoError(t, tmpl.CheckVariables(map[string]string{"order_id": "o1", "city": "Kyiv"}))

	err := tmpl.CheckVariables(map[string]string{"order_id": "o1"})
	assert.ErrorIs(t, err, templates.ErrMissingVariables)
	assert.Contains(t, err.Error(), "city")
}

func TestTemplate_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tmpl templates.Template
		ok   bool
	}{
		{"valid", templates.Template{ID: "a", Channel: "email", Body: "b"}, true},
		{"missing id", templates.Template{Channel: "email", Body: "b"}, false},
		{"missing channel", templates.Template{ID: "a", Body: "b"}, false},
		{"missing body", templates.Template{ID: "a", Channel: "email"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.tmpl.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, templates.ErrInvalidTemplate)
			}
		})
	}
}
