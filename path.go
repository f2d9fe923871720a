package mmkv

import (
	"crypto/md5" //nolint:gosec // content-addressing, not a security boundary
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
)

// specialChars are the characters disallowed directly in a file name on
// at least one of the platforms mmkv targets; IDs containing any of them
// are rehomed to a content-addressed path instead (spec.md §6, "Path
// encoding"). Grounded on the teacher's own `filepath.Dir`/`MkdirAll`
// directory-creation convention in open.go.
const specialChars = "\\/:*?\"<>|"

// specialCharacterDir is the subdirectory under rootDir that holds
// namespaces whose id required MD5 rehoming.
const specialCharacterDir = "specialCharacter"

// namespacePaths resolves id to its absolute data-file and meta-file
// paths under rootDir, per spec.md §6:
//
//	IDs containing any of `\ / : * ? " < > |` are replaced by the MD5 hex
//	of the ID, stored under <rootDir>/specialCharacter/<md5>; otherwise,
//	<rootDir>/<id>. The CRC file is <dataPath>.crc.
func namespacePaths(rootDir, id string) (dataPath, metaPath string, err error) {
	if rootDir == "" || id == "" {
		return "", "", ErrInvalidPath
	}

	name := id
	if strings.ContainsAny(id, specialChars) {
		sum := md5.Sum([]byte(id)) //nolint:gosec // not a security boundary, see above
		name = hex.EncodeToString(sum[:])
		dataPath = filepath.Join(rootDir, specialCharacterDir, name)
	} else {
		dataPath = filepath.Join(rootDir, name)
	}

	metaPath = dataPath + ".crc"

	return dataPath, metaPath, nil
}

// ensureParentDir creates the parent directory of path if missing, mode
// 0o750, matching the teacher's createNewCache directory-creation call.
func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" {
		dir = "."
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	return nil
}

// isFileValid reports whether a namespace's data file and meta file both
// exist and are at least minimally well-formed (page-aligned data file
// size, parseable meta), without opening a live handle on them. Grounded
// on the original's MMKV::isFileValid (original_source, POSIX/src/MMKV.cpp):
// a lightweight existence+shape probe callers can use before `open` to
// decide whether to treat a namespace as new.
func IsFileValid(rootDir, id string) bool {
	return isFileValid(rootDir, id)
}

func isFileValid(rootDir, id string) bool {
	dataPath, metaPath, err := namespacePaths(rootDir, id)
	if err != nil {
		return false
	}

	dataInfo, err := os.Stat(dataPath)
	if err != nil {
		return false
	}

	if dataInfo.Size() < dataHeaderSize || dataInfo.Size()%int64(pageSize()) != 0 {
		return false
	}

	metaInfoStat, err := os.Stat(metaPath)
	if err != nil {
		return false
	}

	return metaInfoStat.Size() >= metaStructSize
}

// initialize is the static `Initialize(rootDir)` operation from spec.md
// §6: it only ensures rootDir exists and, if an ambient config file is
// present, loads it (config.go). It never opens or creates any namespace
// file.
func Initialize(rootDir string) error {
	return initialize(rootDir)
}

func initialize(rootDir string) error {
	if rootDir == "" {
		return ErrInvalidPath
	}

	if err := os.MkdirAll(rootDir, 0o750); err != nil {
		return err
	}

	loadAmbientConfig(rootDir)

	return nil
}
