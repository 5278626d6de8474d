package report

import "github.com/sentrykit/sentrykit/introspect"

// writeBinaryImages writes the "binary_images" array described by
// spec.md §4.E: one object per loaded image, drawn from the dynamic
// linker via the machine introspection provider.
func writeBinaryImages(w encoder, provider introspect.MachineProvider) {
	w.BeginArray("binary_images")
	defer w.EndContainer()

	images, err := provider.BinaryImages()
	if err != nil {
		return
	}
	for _, img := range images {
		w.BeginObjectUnnamed()
		w.AddUint("image_addr", img.ImageAddr)
		w.AddUint("image_vmaddr", img.ImageVMAddr)
		w.AddUint("image_size", img.ImageSize)
		w.AddString("name", img.Name)
		w.AddUUID("uuid", img.UUID)
		w.AddInt("cpu_type", int64(img.CPUType))
		w.AddInt("cpu_subtype", int64(img.CPUSubtype))
		w.EndContainer()
	}
}
