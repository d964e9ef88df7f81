// Package deferred implements the lighting pass of a deferred renderer.
//
// A geometry pass is expected to have filled three render targets:
//
//	target 0: albedo (rgb), ambient occlusion (a)
//	target 1: encoded view space normal (rg), linear view depth (b)
//	target 2: specular color (rgb), specular exponent (a)
//
// [Pass.Draw] then draws one full screen quad per visible light, clipped
// to the light's screen rectangle, and adds its contribution to the frame
// target. Every light picks a variant of the lighting templates through a
// [progen.Generator]. The fragment defines are:
//
//	DIRECTIONAL          directional light
//	PROJECTIVE_POINT     point light projecting a cube map
//	SPOT                 spot light
//	PROJECTIVE_SPOT      spot light projecting a texture
//	SPOT_CONE            hard cone, SPOT_SMOOTHCONE adds a falloff
//	SHADOWMAPPING        shadow mapped, SOFTSHADOWMAPPING filters it
//	NO_ALBEDO, NO_AMBIENTOCCLUSION, NO_SPECULAR, NO_SPECULARCOLOR,
//	NO_SPECULAREXPONENT  ignore parts of the geometry buffer
//	DISCARD              discard rejected fragments instead of writing black
//	GAMMACORRECTION      linearize projected textures
//
// Pass [Flags] switch features off for all lights.
package deferred
