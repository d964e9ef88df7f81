// Package reload reapplies shader templates when their files change.
//
// A render loop polls the watcher once per frame:
//
//	w, err := reload.New("lighting_vs.wgsl", "lighting_fs.wgsl", pass.SetShaderSource)
//	...
//	for frame := range frames {
//		if _, err := w.Poll(); err != nil {
//			log.Print(err)
//		}
//		pass.Draw(frame)
//	}
package reload
