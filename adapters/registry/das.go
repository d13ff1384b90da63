package registry

import (
	"encoding/json"
	"strconv"
)

// Trait names read from token metadata
const (
	TraitAgentEndpoint = "agent_endpoint"
	TraitAgentType     = "agent_type"
)

// dasAsset is the subset of a DAS getAsset result the gateway reads
type dasAsset struct {
	ID      string `json:"id"`
	Content struct {
		JSONURI  string `json:"json_uri"`
		Metadata struct {
			Name        string  `json:"name"`
			Description string  `json:"description"`
			Attributes  []trait `json:"attributes"`
		} `json:"metadata"`
		Links struct {
			Image string `json:"image"`
		} `json:"links"`
	} `json:"content"`
	Ownership struct {
		Owner string `json:"owner"`
	} `json:"ownership"`
	Attributes *attributeList `json:"attributes"`
	Plugins    struct {
		Attributes struct {
			Data *attributeList `json:"data"`
		} `json:"attributes"`
	} `json:"plugins"`
}

type attributeList struct {
	AttributeList []trait `json:"attribute_list"`
}

type trait struct {
	TraitType string     `json:"trait_type"`
	Value     traitValue `json:"value"`
}

// traitValue accepts any JSON scalar and keeps its text form
type traitValue string

func (v *traitValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = traitValue(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*v = traitValue(n.String())
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*v = traitValue(strconv.FormatBool(b))
		return nil
	}

	// Objects, arrays and null carry no usable trait value
	*v = ""
	return nil
}

// lookupTrait returns the value of the named trait from the first attribute
// list that carries it, searching the asset's attribute list, then the
// attributes plugin, then the off-chain JSON metadata.
func (a *dasAsset) lookupTrait(name string) (string, bool) {
	var lists [][]trait
	if a.Attributes != nil {
		lists = append(lists, a.Attributes.AttributeList)
	}
	if a.Plugins.Attributes.Data != nil {
		lists = append(lists, a.Plugins.Attributes.Data.AttributeList)
	}
	lists = append(lists, a.Content.Metadata.Attributes)

	for _, list := range lists {
		for _, t := range list {
			if t.TraitType == name {
				return string(t.Value), true
			}
		}
	}

	return "", false
}
