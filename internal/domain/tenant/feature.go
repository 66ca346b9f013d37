// internal/domain/tenant/feature.go
package tenant

// Feature identifies one of the scheduled content features a tenant can enable.
type Feature string

const (
	FeatureBirthday  Feature = "birthday"  // Daily check for members whose recurring date is today
	FeatureSpotlight Feature = "spotlight" // Weekly rotating member spotlight
	FeatureQuestion  Feature = "question"  // Question of the day
	FeaturePrompt    Feature = "prompt"    // Recurring discussion prompt every N days
)

// AllFeatures lists every feature in the order the poll loop evaluates them.
var AllFeatures = []Feature{FeatureBirthday, FeatureSpotlight, FeatureQuestion, FeaturePrompt}

func (f Feature) Valid() bool {
	switch f {
	case FeatureBirthday, FeatureSpotlight, FeatureQuestion, FeaturePrompt:
		return true
	}
	return false
}
