package profile

import _ "embed"

//go:embed profiles/type2-diabetes.yaml
var type2YAML []byte

//go:embed profiles/type1-diabetes.yaml
var type1YAML []byte

//go:embed profiles/prediabetes.yaml
var prediabetesYAML []byte

//go:embed profiles/gestational.yaml
var gestationalYAML []byte

//go:embed profiles/pcos.yaml
var pcosYAML []byte

//go:embed profiles/general.yaml
var generalYAML []byte

// builtinProfiles maps profile names to their embedded YAML content.
var builtinProfiles = map[string][]byte{
	"type2-diabetes": type2YAML,
	"type1-diabetes": type1YAML,
	"prediabetes":    prediabetesYAML,
	"gestational":    gestationalYAML,
	"pcos":           pcosYAML,
	"general":        generalYAML,
}
