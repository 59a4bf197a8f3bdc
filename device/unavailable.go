package device

// Unavailable is a device that is never present. Every call fails with
// ErrUnavailable.
type Unavailable struct{}

func (Unavailable) Open() error { return ErrUnavailable }

func (Unavailable) Close() error { return nil }

func (Unavailable) Position() (Vec3f, error) { return Vec3f{}, ErrUnavailable }

func (Unavailable) SetForce(Vec3f) error { return ErrUnavailable }

func (Unavailable) EnableForce(bool) error { return ErrUnavailable }

func (Unavailable) Button(int) (bool, error) { return false, ErrUnavailable }
