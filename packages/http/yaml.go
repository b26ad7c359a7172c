package http

import "gopkg.in/yaml.v3"

// Fields loaded from request files are enabled unless they say otherwise.

func (h *HeaderField) UnmarshalYAML(value *yaml.Node) error {
	type plain HeaderField
	p := plain{Enabled: true}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*h = HeaderField(p)
	return nil
}

func (f *FormField) UnmarshalYAML(value *yaml.Node) error {
	type plain FormField
	p := plain{Enabled: true}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*f = FormField(p)
	return nil
}

func (f *MultipartField) UnmarshalYAML(value *yaml.Node) error {
	type plain MultipartField
	p := plain{Enabled: true, Type: MultipartText}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*f = MultipartField(p)
	return nil
}
