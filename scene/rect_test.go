package scene

import (
	"testing"
)

func TestRect(t *testing.T) {
	r := EmptyRect()
	if !r.IsEmpty() || r.Width() != 0 || r.Height() != 0 {
		t.Fatalf("expected empty rect, got %+v", r)
	}
	r = r.UnionPoint(1, 2).UnionPoint(4, 6)
	if r.Width() != 3 || r.Height() != 4 {
		t.Errorf("expected 3x4, got %vx%v", r.Width(), r.Height())
	}
	clip := r.Intersect(Rect{MinX: 2, MinY: 0, MaxX: 10, MaxY: 3})
	if clip != (Rect{MinX: 2, MinY: 2, MaxX: 4, MaxY: 3}) {
		t.Errorf("unexpected intersection %+v", clip)
	}
	if !r.Intersect(Rect{MinX: 5, MinY: 0, MaxX: 6, MaxY: 1}).IsEmpty() {
		t.Error("expected disjoint rects to intersect empty")
	}
}

func TestAABBCorners(t *testing.T) {
	b := AABB{Min: [3]float32{-1, -2, -3}, Max: [3]float32{1, 2, 3}}
	seen := make(map[[3]float32]bool)
	for _, c := range b.Corners() {
		seen[c] = true
	}
	if len(seen) != 8 {
		t.Errorf("expected 8 distinct corners, got %d", len(seen))
	}
}

func TestScreenRect(t *testing.T) {
	box := AABB{Min: [3]float32{-1, -1, -1}, Max: [3]float32{1, 1, 1}}
	proj := Perspective(90, 1, 0.1, 100)
	vp := Viewport{X: 10, Y: 20, Width: 100, Height: 100}

	tests := []struct {
		name string
		pos  [3]float32
		want Viewport
	}{
		{"centered", [3]float32{0, 0, -5}, Viewport{X: 47, Y: 57, Width: 26, Height: 26}},
		{"behind camera", [3]float32{0, 0, 5}, vp},
		{"outside", [3]float32{100, 0, -5}, Viewport{X: 10, Y: 20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wvp := Mul(proj, Translate(tt.pos[0], tt.pos[1], tt.pos[2]))
			if got := ScreenRect(box, wvp, vp); got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}

	if !(Viewport{Width: 5}).Empty() || (Viewport{Width: 1, Height: 1}).Empty() {
		t.Error("unexpected Viewport.Empty result")
	}
}

func TestScreenRectUpperHalf(t *testing.T) {
	box := AABB{Min: [3]float32{-1, 0.5, -1}, Max: [3]float32{1, 1, 1}}
	wvp := Mul(Perspective(90, 1, 0.1, 100), Translate(0, 0, -5))
	got := ScreenRect(box, wvp, Viewport{Width: 100, Height: 100})
	if got.Y+got.Height > 50 {
		t.Errorf("expected a box above the horizon in the top half, got %+v", got)
	}
}
