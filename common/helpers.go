package common

import "os/user"

// IsRunningAsRoot reports whether the process runs as root, which installing
// and controlling the system service requires.
func IsRunningAsRoot() bool {
	usr, err := user.Current()
	if err != nil {
		return false
	}
	return usr.Uid == "0" || usr.Username == "root"
}
