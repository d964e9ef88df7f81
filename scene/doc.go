// Package scene holds the scene data render passes consume: lights as seen
// from the camera, the G-buffer and shadow map providers, and the small
// amount of float32 matrix math needed to place them.
//
// Scene graph traversal, culling and shadow map rendering happen elsewhere;
// this package only describes their results.
package scene
