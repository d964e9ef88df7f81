package deferred

import (
	"errors"

	"github.com/gogpu/ubershader/buffer"
	"github.com/gogpu/ubershader/shader"
)

var errQuadInputs = errors.New("deferred: lighting program lacks position or texcoord input")

// handles are the resolved inputs of one lighting variant. Handles the
// variant does not declare stay nil.
type handles struct {
	textureSize  *shader.Uniform
	invFocalLen  *shader.Uniform
	renderTarget [3]*shader.Uniform

	lightColor     *shader.Uniform
	lightDirection *shader.Uniform
	lightPosition  *shader.Uniform
	lightRadius    *shader.Uniform

	projectivePointCubeMap  *shader.Uniform
	projectiveSpotMap       *shader.Uniform
	projectiveMapSampler    *shader.Uniform
	viewSpaceToCubeMapSpace *shader.Uniform
	viewSpaceToSpotMapSpace *shader.Uniform
	spotConeCos             *shader.Uniform

	shadowMap                     *shader.Uniform
	shadowMapSampler              *shader.Uniform
	viewSpaceToShadowMapSpace     *shader.Uniform
	viewSpaceToShadowCubeMapSpace *shader.Uniform
	invLightRadius                *shader.Uniform
	texelSize                     *shader.Uniform
}

// resolveHandles looks up the inputs of prog and binds the quad to its
// vertex inputs.
func resolveHandles(prog *shader.Program, quad *buffer.VertexBuffer) (*handles, error) {
	position := prog.GetAttribute("position")
	texcoord := prog.GetAttribute("texcoord")
	if position == nil || texcoord == nil {
		return nil, errQuadInputs
	}
	if err := position.Set(quad, buffer.Position, 0); err != nil {
		return nil, err
	}
	if err := texcoord.Set(quad, buffer.TexCoord, 0); err != nil {
		return nil, err
	}

	return &handles{
		textureSize: prog.GetUniform("TextureSize"),
		invFocalLen: prog.GetUniform("InvFocalLen"),
		renderTarget: [3]*shader.Uniform{
			prog.GetUniform("RenderTargetTexture0"),
			prog.GetUniform("RenderTargetTexture1"),
			prog.GetUniform("RenderTargetTexture2"),
		},

		lightColor:     prog.GetUniform("LightColor"),
		lightDirection: prog.GetUniform("LightDirection"),
		lightPosition:  prog.GetUniform("LightPosition"),
		lightRadius:    prog.GetUniform("LightRadius"),

		projectivePointCubeMap:  prog.GetUniform("ProjectivePointCubeMap"),
		projectiveSpotMap:       prog.GetUniform("ProjectiveSpotMap"),
		projectiveMapSampler:    prog.GetUniform("ProjectiveMapSampler"),
		viewSpaceToCubeMapSpace: prog.GetUniform("ViewSpaceToCubeMapSpace"),
		viewSpaceToSpotMapSpace: prog.GetUniform("ViewSpaceToSpotMapSpace"),
		spotConeCos:             prog.GetUniform("SpotConeCos"),

		shadowMap:                     prog.GetUniform("ShadowMap"),
		shadowMapSampler:              prog.GetUniform("ShadowMapSampler"),
		viewSpaceToShadowMapSpace:     prog.GetUniform("ViewSpaceToShadowMapSpace"),
		viewSpaceToShadowCubeMapSpace: prog.GetUniform("ViewSpaceToShadowCubeMapSpace"),
		invLightRadius:                prog.GetUniform("InvLightRadius"),
		texelSize:                     prog.GetUniform("TexelSize"),
	}, nil
}
