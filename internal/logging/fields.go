package logging

import "github.com/sirupsen/logrus"

// LibraryFields identifies a library lookup in a storage location.
func LibraryFields(uberName, location string) logrus.Fields {
	return logrus.Fields{
		"library":  uberName,
		"location": location,
	}
}

// TargetFields identifies a read target of an aggregate by its position.
func TargetFields(uberName string, index int, target any) logrus.Fields {
	return logrus.Fields{
		"library": uberName,
		"target":  index,
		"storage": describe(target),
	}
}

func describe(target any) string {
	if located, ok := target.(interface{ Location() string }); ok && located.Location() != "" {
		return located.Location()
	}
	return "unnamed"
}
