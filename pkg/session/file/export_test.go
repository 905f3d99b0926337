package file

// SetRename replaces the final rename step of Save.
func (d *Driver) SetRename(rename func(oldpath, newpath string) error) {
	d.rename = rename
}
