package api

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/ZanzyTHEbar/yecs/internal/errors"
)

const unitInterval = `{"type": "number", "minimum": 0, "maximum": 1}`
const nonNegative = `{"type": "number", "minimum": 0}`

var createUserSchema = mustCompile(`{
	"type": "object",
	"required": ["email", "first_name", "last_name", "age"],
	"properties": {
		"email": {"type": "string", "format": "email"},
		"first_name": {"type": "string", "minLength": 1},
		"last_name": {"type": "string", "minLength": 1},
		"age": {"type": "integer", "minimum": 18, "maximum": 120}
	}
}`, []string{"email", "first_name", "last_name", "age"})

var businessProfileSchema = mustCompile(`{
	"type": "object",
	"required": ["industry", "education_level", "business_plan_quality", "revenue_projection", "years_of_experience"],
	"properties": {
		"business_name": {"type": "string"},
		"industry": {"type": "string", "minLength": 1},
		"education_level": {"type": "string", "minLength": 1},
		"business_plan_quality": `+unitInterval+`,
		"revenue_projection": `+nonNegative+`,
		"years_of_experience": `+nonNegative+`,
		"identity_verification": `+unitInterval+`,
		"professional_network": `+unitInterval+`,
		"online_presence": `+unitInterval+`,
		"community_involvement": `+unitInterval+`
	}
}`, []string{"business_name", "industry", "education_level", "business_plan_quality", "revenue_projection",
	"years_of_experience", "identity_verification", "professional_network", "online_presence", "community_involvement"})

var financialDataSchema = mustCompile(`{
	"type": "object",
	"required": ["monthly_income", "monthly_expenses", "savings_amount", "debt_amount", "utility_payment_score", "rent_payment_score"],
	"properties": {
		"monthly_income": `+nonNegative+`,
		"monthly_expenses": `+nonNegative+`,
		"savings_amount": `+nonNegative+`,
		"debt_amount": `+nonNegative+`,
		"utility_payment_score": `+unitInterval+`,
		"rent_payment_score": `+unitInterval+`,
		"traditional_credit_score": {"type": "integer", "minimum": 300, "maximum": 850},
		"credit_utilization": `+unitInterval+`,
		"recent_credit_inquiries": {"type": "integer", "minimum": 0}
	}
}`, []string{"monthly_income", "monthly_expenses", "savings_amount", "debt_amount", "utility_payment_score",
	"rent_payment_score", "traditional_credit_score", "credit_utilization", "recent_credit_inquiries"})

// payloadSchema is a compiled request schema plus the order in which fields are reported.
type payloadSchema struct {
	schema     *gojsonschema.Schema
	fieldOrder []string
}

func mustCompile(schema string, fieldOrder []string) payloadSchema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		panic(fmt.Sprintf("invalid request schema: %v", err))
	}
	return payloadSchema{schema: s, fieldOrder: append(append([]string(nil), fieldOrder...), "body")}
}

// validate checks a raw JSON body. The first offending field, in schema order,
// is named in the returned ValidationError.
func (p payloadSchema) validate(body []byte) error {
	result, err := p.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return errors.NewValidationError("body", "must be a valid JSON object")
	}
	if result.Valid() {
		return nil
	}

	problems := make(map[string]string, len(result.Errors()))
	for _, desc := range result.Errors() {
		field, message := describe(desc)
		if _, seen := problems[field]; !seen {
			problems[field] = message
		}
	}
	return errors.NewValidationErrorWithMap(problems, p.fieldOrder)
}

func describe(desc gojsonschema.ResultError) (string, string) {
	if desc.Type() == "required" {
		if prop, ok := desc.Details()["property"].(string); ok {
			return prop, "is required"
		}
	}

	field := desc.Field()
	if field == "(root)" || field == "" {
		field = "body"
	}
	msg := desc.Description()
	if msg == "" {
		return field, "is invalid"
	}
	return field, strings.ToLower(msg[:1]) + msg[1:]
}
