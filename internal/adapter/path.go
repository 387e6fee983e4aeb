package adapter

// Hidden names cannot be stored with a leading dot on the volume, so they
// live there with a leading underscore instead. The rewrite is a lossy
// heuristic: a stored name with a genuine leading underscore is
// indistinguishable from a mangled hidden name and always lists as hidden.

// ManglePath rewrites every dot-led path component to its stored
// underscore form. Applying it twice is a no-op.
func ManglePath(path string) string {
	b := []byte(path)
	changed := false
	for i := range b {
		if b[i] == '.' && (i == 0 || b[i-1] == '/') {
			b[i] = '_'
			changed = true
		}
	}
	if !changed {
		return path
	}
	return string(b)
}

// DemangleName presents one stored leaf name at the POSIX boundary,
// rewriting a leading underscore back to a dot. It applies only to names
// coming out of directory enumeration, never to whole paths.
func DemangleName(name string) string {
	if name == "" || name[0] != '_' {
		return name
	}
	return "." + name[1:]
}
