package schema

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/sirosfoundation/go-iso20022/pkg/message"
)

//go:embed schemas/*.yaml
var builtin embed.FS

// messageTypePattern accepts "pacs.008" and "pacs.008.001.08" style tokens.
// Anything else is never turned into a file name.
var messageTypePattern = regexp.MustCompile(`^[a-z]{4}\.\d{3}(\.\d{3}\.\d{2})?$`)

// candidates returns the schema names to try for messageType, most
// specific first.
func candidates(messageType string) []string {
	if !messageTypePattern.MatchString(messageType) {
		return nil
	}
	family := message.Classify(messageType)
	if !family.Known() || family.Prefix() == messageType {
		return []string{messageType + ".yaml"}
	}
	return []string{messageType + ".yaml", family.Prefix() + ".yaml"}
}

// FSResolver resolves shape schemas from fsys. A schema named after the exact
// message type ("pacs.008.001.08.yaml") is preferred over the family schema
// ("pacs.008.yaml").
func FSResolver(fsys fs.FS) Resolver {
	return func(messageType string) (Schema, error) {
		for _, name := range candidates(messageType) {
			data, err := fs.ReadFile(fsys, name)
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("reading schema %s: %w", name, err)
			}
			s, err := ParseShapeSchema(data)
			if err != nil {
				return nil, fmt.Errorf("schema %s: %w", name, err)
			}
			return s, nil
		}
		return nil, nil
	}
}

// DirResolver resolves shape schemas from a directory on disk.
func DirResolver(dir string) Resolver {
	return FSResolver(os.DirFS(filepath.Clean(dir)))
}

// EmbeddedResolver resolves the shape schemas compiled into the binary.
func EmbeddedResolver() Resolver {
	sub, err := fs.Sub(builtin, "schemas")
	if err != nil {
		panic(err)
	}
	return FSResolver(sub)
}

// ChainResolver returns the first schema found by resolvers, in order.
func ChainResolver(resolvers ...Resolver) Resolver {
	return func(messageType string) (Schema, error) {
		for _, r := range resolvers {
			if r == nil {
				continue
			}
			s, err := r(messageType)
			if err != nil {
				return nil, err
			}
			if s != nil {
				return s, nil
			}
		}
		return nil, nil
	}
}
