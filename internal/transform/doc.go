// Package transform is the converter registry of the metadata engine.
// A converter is a pure function from (value, literal args) to a new value,
// registered under a name and referenced from templates as
// {field#name(args)}. Default() holds the built-in catalog: datetime,
// geometry, string, mission identifier, classification and structured
// parameter families.
package transform
