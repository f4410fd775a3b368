/*
Package mmap 对 POSIX mmap(2) / Windows 文件映射 API 做了一层平台无关的薄封装。
真正的系统调用在 linux.go 和 windows.go 里按构建标签分别实现；本文件只导出
供上层（storage/disk）调用的入口。
*/
package mmap

import "os"

// Mmap 把 fd 指向的文件映射进内存，映射区域为 [0, size)。writable 为 true
// 时映射为可读写，否则只读。
func Mmap(fd *os.File, writable bool, size int64) ([]byte, error) {
	return mmap(fd, writable, size)
}

// Munmap 解除之前由 Mmap 建立的映射。
func Munmap(data []byte) error {
	return munmap(data)
}

// Msync 把映射区域里已修改的数据刷到持久存储。
func Msync(data []byte) error {
	return msync(data)
}

// Madvise 提示内核这块映射区域的访问模式，便于预读决策。
func Madvise(data []byte, readahead bool) error {
	return madvise(data, readahead)
}
