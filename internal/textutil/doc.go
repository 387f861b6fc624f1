// Package textutil sanitizes page titles and free-form values for use in file
// names and metric labels.
package textutil
