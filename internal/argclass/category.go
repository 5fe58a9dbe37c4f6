package argclass

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Category is the inferred type of one command-line token.
type Category string

// Categories, in classification priority order.
const (
	CategoryFlag    Category = "op_flag"    // -v, --help
	CategoryOperand Category = "op_arg"     // --quality=9, if=/dev/zero
	CategoryURL     Category = "op_url"     // https://example.com
	CategoryNumber  Category = "op_num"     // 42, 0.5
	CategoryIP      Category = "op_ip"      // 10.0.0.1, 10.0.0.1:80
	CategoryFile    Category = "op_file"    // existing regular file
	CategoryUnknown Category = "op_unknown" // directories and the rest
)

// Classified pairs a token with its category.
type Classified struct {
	Category Category
	Token    string
}

// MarshalYAML writes the single-key mapping {category: token}.
func (c Classified) MarshalYAML() (interface{}, error) {
	return map[string]string{string(c.Category): c.Token}, nil
}

// UnmarshalYAML reads the single-key mapping written by MarshalYAML.
func (c *Classified) UnmarshalYAML(value *yaml.Node) error {
	var m map[string]string
	if err := value.Decode(&m); err != nil {
		return err
	}
	if len(m) != 1 {
		return fmt.Errorf("classified argument at line %d: want exactly one key, got %d", value.Line, len(m))
	}
	for k, v := range m {
		c.Category = Category(k)
		c.Token = v
	}
	return nil
}
