// Package secrets resolves configuration values stored in AWS SSM Parameter
// Store. A value of the form "ssm:/path/to/param" is replaced by the
// decrypted parameter; every other value is returned unchanged.
package secrets

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// Prefix marks a value as an SSM parameter reference.
const Prefix = "ssm:"

// SSMAPI is the subset of the SSM client used here.
type SSMAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, opts ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Resolver looks up parameter references. Lookups are cached for the
// resolver's lifetime.
type Resolver struct {
	client SSMAPI
	cache  map[string]string
}

// NewResolver creates a resolver over client.
func NewResolver(client SSMAPI) *Resolver {
	return &Resolver{client: client, cache: make(map[string]string)}
}

// NewFromConfig creates a resolver backed by the default AWS credential chain.
func NewFromConfig(ctx context.Context, region string) (*Resolver, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewResolver(ssm.NewFromConfig(cfg)), nil
}

// IsReference reports whether value names an SSM parameter.
func IsReference(value string) bool {
	return strings.HasPrefix(value, Prefix)
}

// Resolve returns value, or the parameter it references.
func (r *Resolver) Resolve(ctx context.Context, value string) (string, error) {
	name, ok := strings.CutPrefix(value, Prefix)
	if !ok {
		return value, nil
	}
	if name == "" {
		return "", fmt.Errorf("empty ssm parameter name")
	}
	if v, ok := r.cache[name]; ok {
		return v, nil
	}
	if r.client == nil {
		return "", fmt.Errorf("resolve %s: no ssm client configured", name)
	}
	out, err := r.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("resolve ssm parameter %s: %w", name, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("resolve ssm parameter %s: no value", name)
	}
	v := aws.ToString(out.Parameter.Value)
	r.cache[name] = v
	return v, nil
}

// ResolveAll resolves each pointed-to value in place and stops at the first error.
func (r *Resolver) ResolveAll(ctx context.Context, values ...*string) error {
	for _, p := range values {
		if p == nil || !IsReference(*p) {
			continue
		}
		v, err := r.Resolve(ctx, *p)
		if err != nil {
			return err
		}
		*p = v
	}
	return nil
}
