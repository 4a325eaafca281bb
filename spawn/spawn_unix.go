// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

//go:build unix && cgo

package spawn

/*
#include <spawn.h>
#include <stdlib.h>
#include <signal.h>
#include <errno.h>

int rush_spawn_file_actions_init(posix_spawn_file_actions_t *a) {
	return posix_spawn_file_actions_init(a);
}
int rush_spawn_file_actions_destroy(posix_spawn_file_actions_t *a) {
	return posix_spawn_file_actions_destroy(a);
}
int rush_spawn_file_actions_adddup2(posix_spawn_file_actions_t *a, int fd, int newfd) {
	return posix_spawn_file_actions_adddup2(a, fd, newfd);
}
int rush_spawn_file_actions_addopen(posix_spawn_file_actions_t *a, int fd, const char *path, int flags, mode_t mode) {
	return posix_spawn_file_actions_addopen(a, fd, path, flags, mode);
}
int rush_spawn_file_actions_addclose(posix_spawn_file_actions_t *a, int fd) {
	return posix_spawn_file_actions_addclose(a, fd);
}

int rush_spawnattr_init(posix_spawnattr_t *a) {
	return posix_spawnattr_init(a);
}
int rush_spawnattr_destroy(posix_spawnattr_t *a) {
	return posix_spawnattr_destroy(a);
}
int rush_spawnattr_setpgroup(posix_spawnattr_t *a, pid_t pgid) {
	return posix_spawnattr_setpgroup(a, pgid);
}
int rush_spawnattr_setflags(posix_spawnattr_t *a, short flags) {
	return posix_spawnattr_setflags(a, flags);
}
int rush_spawnattr_setsigdefault(posix_spawnattr_t *a, sigset_t *set) {
	return posix_spawnattr_setsigdefault(a, set);
}

int rush_posix_spawnp(pid_t *pid, const char *file,
	posix_spawn_file_actions_t *file_actions,
	posix_spawnattr_t *attrp,
	char *const argv[], char *const envp[]) {
	return posix_spawnp(pid, file, file_actions, attrp, argv, envp);
}
*/
import "C"

import (
	"syscall"
	"unsafe"
)

func errnoError(ret C.int) error {
	if ret == 0 {
		return nil
	}
	return syscall.Errno(ret)
}

// Run launches prog (looked up via PATH unless it contains a slash) with
// argv/envp, applying actions in order between the spawn and the exec,
// and placing the child into attr's process group — a thin wrapper over
// libc's posix_spawn/posix_spawn_file_actions family (spec.md §4.5/§9),
// portable across Linux glibc and Darwin since both expose this surface.
func Run(prog string, argv, envp []string, actions []FileAction, attr Attr) (int, error) {
	var fa C.posix_spawn_file_actions_t
	if ret := C.rush_spawn_file_actions_init(&fa); ret != 0 {
		return 0, errnoError(ret)
	}
	defer C.rush_spawn_file_actions_destroy(&fa)

	for _, act := range actions {
		switch act.Kind {
		case Dup2:
			if ret := C.rush_spawn_file_actions_adddup2(&fa, C.int(act.Fd), C.int(act.NewFd)); ret != 0 {
				return 0, errnoError(ret)
			}
		case Open:
			cpath := C.CString(act.Path)
			ret := C.rush_spawn_file_actions_addopen(&fa, C.int(act.Fd), cpath, C.int(act.Flags), C.mode_t(act.Mode))
			C.free(unsafe.Pointer(cpath))
			if ret != 0 {
				return 0, errnoError(ret)
			}
		case Close:
			if ret := C.rush_spawn_file_actions_addclose(&fa, C.int(act.Fd)); ret != 0 {
				return 0, errnoError(ret)
			}
		}
	}

	var sa C.posix_spawnattr_t
	if ret := C.rush_spawnattr_init(&sa); ret != 0 {
		return 0, errnoError(ret)
	}
	defer C.rush_spawnattr_destroy(&sa)

	if attr.JoinPgid || attr.Pgid != 0 {
		C.rush_spawnattr_setpgroup(&sa, C.pid_t(attr.Pgid))
		C.rush_spawnattr_setflags(&sa, C.POSIX_SPAWN_SETPGROUP)
	}

	cprog := C.CString(prog)
	defer C.free(unsafe.Pointer(cprog))

	cArgv := cStringArray(argv)
	defer freeCStringArray(cArgv)
	cEnvp := cStringArray(envp)
	defer freeCStringArray(cEnvp)

	var pid C.pid_t
	ret := C.rush_posix_spawnp(&pid, cprog, &fa, &sa,
		(**C.char)(unsafe.Pointer(&cArgv[0])),
		(**C.char)(unsafe.Pointer(&cEnvp[0])))
	if ret != 0 {
		return 0, errnoError(ret)
	}
	return int(pid), nil
}

func cStringArray(ss []string) []*C.char {
	out := make([]*C.char, len(ss)+1)
	for i, s := range ss {
		out[i] = C.CString(s)
	}
	out[len(ss)] = nil
	return out
}

func freeCStringArray(cs []*C.char) {
	for _, c := range cs {
		if c != nil {
			C.free(unsafe.Pointer(c))
		}
	}
}
