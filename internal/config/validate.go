package config

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var clusterNameRegex = regexp.MustCompile(`^[a-z][a-z0-9-]{0,39}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("clustername", func(fl validator.FieldLevel) bool {
		return clusterNameRegex.MatchString(fl.Field().String())
	})
	return v
}

// Validate checks the cluster definition and returns every violation found, joined.
// Each joined error is a *ConfigError; they are ordered by field.
func (c *Config) Validate() error {
	var errs []*ConfigError

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("failed to validate config: %w", err)
		}
		for _, fe := range verrs {
			errs = append(errs, &ConfigError{Field: yamlPath(fe.Namespace()), Message: describe(fe)})
		}
	}

	errs = append(errs, c.validateRoles()...)
	errs = append(errs, c.validatePlacement()...)
	errs = append(errs, c.validateBootstrap()...)

	if len(errs) == 0 {
		return nil
	}

	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	joined := make([]error, len(errs))
	for i, e := range errs {
		joined[i] = e
	}
	return errors.Join(joined...)
}

func (c *Config) validateRoles() []*ConfigError {
	var errs []*ConfigError

	others := 0
	for role, spec := range c.Nodes {
		if !role.Valid() {
			errs = append(errs, &ConfigError{
				Field:   "nodes." + string(role),
				Message: fmt.Sprintf("unknown role, must be one of %s", joinRoles()),
			})
			continue
		}
		if role != RoleClusterMaster {
			others += spec.Count
		}
	}

	masters := c.Count(RoleClusterMaster)
	switch {
	case masters > 1:
		errs = append(errs, &ConfigError{
			Field:   "nodes.clustermaster.count",
			Message: fmt.Sprintf("at most one clustermaster is supported, got %d", masters),
		})
	case others > 0 && masters != 1:
		errs = append(errs, &ConfigError{
			Field:   "nodes.clustermaster.count",
			Message: "exactly one clustermaster is required when other nodes are requested",
		})
	}
	return errs
}

func (c *Config) validatePlacement() []*ConfigError {
	if c.TotalNodes() > 0 && len(c.Network.Subnets) == 0 {
		return []*ConfigError{{
			Field:   "network.subnets",
			Message: "at least one subnet is required when nodes are requested",
		}}
	}
	return nil
}

func (c *Config) validateBootstrap() []*ConfigError {
	if c.Bootstrap.Executor != ExecutorSSH || c.TotalNodes() == 0 {
		return nil
	}
	if c.Bootstrap.SSH.PrivateKeyPath == "" {
		return []*ConfigError{{
			Field:   "bootstrap.ssh.private_key_path",
			Message: "is required for the ssh executor",
		}}
	}
	return nil
}

// yamlPath turns a validator namespace like "Config.nodes[indexer].count"
// into "nodes.indexer.count".
func yamlPath(namespace string) string {
	_, rest, found := strings.Cut(namespace, ".")
	if !found {
		rest = namespace
	}
	rest = strings.ReplaceAll(rest, "[", ".")
	return strings.ReplaceAll(rest, "]", "")
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_unless":
		return "is required"
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "clustername":
		return "must start with a lowercase letter and contain only lowercase letters, digits and '-' (max 40 characters)"
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

func joinRoles() string {
	names := make([]string, 0, len(Roles()))
	for _, r := range Roles() {
		names = append(names, string(r))
	}
	return strings.Join(names, ", ")
}
