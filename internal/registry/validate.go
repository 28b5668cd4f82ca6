package registry

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"workbench/internal/domain"
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// normalizeInput trims text fields and fills engine and port defaults.
func normalizeInput(in domain.ConnectionInput) domain.ConnectionInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Host = strings.TrimSpace(in.Host)
	in.Database = strings.TrimSpace(in.Database)
	in.Username = strings.TrimSpace(in.Username)
	in.Owner = strings.TrimSpace(in.Owner)
	if in.Engine == "" {
		in.Engine = domain.EnginePostgreSQL
	}
	switch {
	case in.Engine.FileBased():
		in.Port = nil
	case in.Port == nil:
		in.Port = in.Engine.DefaultPort()
	}
	return in
}

// validateInput checks required fields and returns the first violation as a ValidationError.
func validateInput(v *validator.Validate, in domain.ConnectionInput) error {
	err := v.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return domain.NewValidationError("", err.Error())
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return domain.NewValidationError(fe.Field(), fe.Field()+" is required")
	case "required_unless":
		return domain.NewValidationError(fe.Field(), fmt.Sprintf("%s is required for %s connections", fe.Field(), in.Engine))
	case "oneof":
		return domain.NewValidationError(fe.Field(), fmt.Sprintf("unsupported %s %q", fe.Field(), fe.Value()))
	default:
		return domain.NewValidationError(fe.Field(), fmt.Sprintf("%s is invalid", fe.Field()))
	}
}

func descriptorFromInput(in domain.ConnectionInput) domain.ConnectionDescriptor {
	return domain.ConnectionDescriptor{
		Name:     in.Name,
		Engine:   in.Engine,
		Host:     in.Host,
		Port:     in.Port,
		Database: in.Database,
		Username: in.Username,
		Password: in.Password,
		Tags:     in.Tags,
		Owner:    in.Owner,
	}
}

func applyPatch(c domain.ConnectionDescriptor, p domain.ConnectionPatch) domain.ConnectionDescriptor {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Engine != nil {
		c.Engine = *p.Engine
		c.Port = nil
	}
	if p.Host != nil {
		c.Host = *p.Host
	}
	if p.Port != nil {
		port := *p.Port
		c.Port = &port
	}
	if p.Database != nil {
		c.Database = *p.Database
	}
	if p.Username != nil {
		c.Username = *p.Username
	}
	if p.Password != nil {
		c.Password = *p.Password
	}
	if p.Tags != nil {
		c.Tags = p.Tags
	}
	if p.Owner != nil {
		c.Owner = *p.Owner
	}
	return c
}
