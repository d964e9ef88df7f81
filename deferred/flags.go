package deferred

import (
	"strings"

	"github.com/gogpu/ubershader/progen"
	"github.com/gogpu/ubershader/scene"
)

// Flags switch features of the lighting pass off.
type Flags uint32

const (
	// NoShadow disables shadow mapping.
	NoShadow Flags = 1 << iota

	// NoShadowLOD requests full detail shadow maps regardless of distance.
	NoShadowLOD

	// NoSoftShadow samples the shadow map once instead of filtering.
	NoSoftShadow

	// NoProjectivePointLights renders projective point lights as plain
	// point lights.
	NoProjectivePointLights

	// NoProjectiveSpotLights renders projective spot lights as plain spot
	// lights.
	NoProjectiveSpotLights

	// NoDiscard writes black for rejected fragments instead of discarding.
	NoDiscard

	// NoGammaCorrection samples projected textures as linear color.
	NoGammaCorrection

	// NoAlbedo ignores the albedo target.
	NoAlbedo

	// NoAmbientOcclusion ignores the ambient occlusion channel.
	NoAmbientOcclusion

	// NoSpecular disables specular lighting and the specular target.
	NoSpecular

	// NoSpecularColor uses white as specular color.
	NoSpecularColor

	// NoSpecularExponent uses a fixed specular exponent.
	NoSpecularExponent
)

var flagNames = [...]string{
	"NoShadow",
	"NoShadowLOD",
	"NoSoftShadow",
	"NoProjectivePointLights",
	"NoProjectiveSpotLights",
	"NoDiscard",
	"NoGammaCorrection",
	"NoAlbedo",
	"NoAmbientOcclusion",
	"NoSpecular",
	"NoSpecularColor",
	"NoSpecularExponent",
}

// String returns the set flags joined by "|".
func (f Flags) String() string {
	if f == 0 {
		return "None"
	}
	var parts []string
	for i, name := range flagNames {
		if f&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	if rest := f &^ (1<<len(flagNames) - 1); rest != 0 {
		parts = append(parts, "Unknown")
	}
	return strings.Join(parts, "|")
}

// ParseFlags parses names as printed by Flags.String, separated by "|" or
// ",". Unknown names are returned as the second result.
func ParseFlags(s string) (Flags, []string) {
	var f Flags
	var unknown []string
	for _, name := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' }) {
		name = strings.TrimSpace(name)
		if name == "" || name == "None" {
			continue
		}
		found := false
		for i, n := range flagNames {
			if strings.EqualFold(n, name) {
				f |= 1 << i
				found = true
				break
			}
		}
		if !found {
			unknown = append(unknown, name)
		}
	}
	return f, unknown
}

// Fragment shader flag bits. Each bit stands for one define of the lighting
// template.
const (
	fsDirectional uint32 = 1 << iota
	fsProjectivePoint
	fsSpot
	fsProjectiveSpot
	fsSpotCone
	fsSpotSmoothCone
	fsShadowMapping
	fsSoftShadowMapping
	fsNoAlbedo
	fsNoAmbientOcclusion
	fsNoSpecular
	fsNoSpecularColor
	fsNoSpecularExponent
	fsDiscard
	fsGammaCorrection
)

// lightVariant describes how a light is drawn once pass flags, light flags
// and resource availability are taken into account.
type lightVariant struct {
	directional     bool
	projectivePoint bool
	spot            bool
	projectiveSpot  bool
	cone            bool
	smoothCone      bool
	shadowMapping   bool
}

// variantOf derives the variant of l. The projective map and shadow map
// arguments report whether those resources are available.
func variantOf(l *scene.Light, flags Flags, projectiveMap, shadowMap bool) lightVariant {
	var v lightVariant
	if l.IsDirectional() {
		v.directional = true
		return v
	}
	if l.IsProjectivePoint() {
		v.projectivePoint = flags&NoProjectivePointLights == 0 && projectiveMap
	} else if l.IsSpot() {
		v.spot = true
		v.projectiveSpot = l.IsProjectiveSpot() && flags&NoProjectiveSpotLights == 0 && projectiveMap
		v.cone = l.HasCone()
		v.smoothCone = l.HasSmoothCone()
	}
	v.shadowMapping = flags&NoShadow == 0 && l.Flags&scene.CastShadow != 0 && shadowMap
	return v
}

// wantsShadow reports whether l asks for a shadow map under flags.
func wantsShadow(l *scene.Light, flags Flags) bool {
	return !l.IsDirectional() && flags&NoShadow == 0 && l.Flags&scene.CastShadow != 0
}

// wantsProjectiveMap reports whether l samples a projected texture under
// flags.
func wantsProjectiveMap(l *scene.Light, flags Flags) bool {
	switch {
	case l.IsProjectivePoint():
		return flags&NoProjectivePointLights == 0
	case l.IsProjectiveSpot():
		return flags&NoProjectiveSpotLights == 0
	}
	return false
}

// addShaderFlags adds the fragment flags of v under pass flags to f. The
// vertex stage has no variants.
func addShaderFlags(f *progen.Flags, v lightVariant, flags Flags) {
	switch {
	case v.directional:
		f.AddFragmentFlag(fsDirectional, "DIRECTIONAL")
	case v.projectivePoint:
		f.AddFragmentFlag(fsProjectivePoint, "PROJECTIVE_POINT")
	case v.spot:
		f.AddFragmentFlag(fsSpot, "SPOT")
		if v.projectiveSpot {
			f.AddFragmentFlag(fsProjectiveSpot, "PROJECTIVE_SPOT")
		}
		if v.cone {
			f.AddFragmentFlag(fsSpotCone, "SPOT_CONE")
			if v.smoothCone {
				f.AddFragmentFlag(fsSpotSmoothCone, "SPOT_SMOOTHCONE")
			}
		}
	}
	if v.shadowMapping && !v.directional {
		f.AddFragmentFlag(fsShadowMapping, "SHADOWMAPPING")
		if flags&NoSoftShadow == 0 {
			f.AddFragmentFlag(fsSoftShadowMapping, "SOFTSHADOWMAPPING")
		}
	}
	if flags&NoAlbedo != 0 {
		f.AddFragmentFlag(fsNoAlbedo, "NO_ALBEDO")
	}
	if flags&NoAmbientOcclusion != 0 {
		f.AddFragmentFlag(fsNoAmbientOcclusion, "NO_AMBIENTOCCLUSION")
	}
	if flags&NoSpecular != 0 {
		f.AddFragmentFlag(fsNoSpecular, "NO_SPECULAR")
	}
	if flags&NoSpecularColor != 0 {
		f.AddFragmentFlag(fsNoSpecularColor, "NO_SPECULARCOLOR")
	}
	if flags&NoSpecularExponent != 0 {
		f.AddFragmentFlag(fsNoSpecularExponent, "NO_SPECULAREXPONENT")
	}
	if flags&NoDiscard == 0 {
		f.AddFragmentFlag(fsDiscard, "DISCARD")
	}
	if flags&NoGammaCorrection == 0 {
		f.AddFragmentFlag(fsGammaCorrection, "GAMMACORRECTION")
	}
}
