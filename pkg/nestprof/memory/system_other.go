//go:build !linux

package memory

func (s *systemSampler) FreeMemory() (float64, error) {
	return 0, ErrUnsupported
}
