package main

// General API documentation for swaggo. Run `swag init -g cmd/fakedetect/docs.go` to regenerate docs/.
//
// @title           fakedetect API
// @version         1.0
// @description     HTTP API that classifies uploaded images as real or fake with a pretrained model.
//
// @contact.name   fakedetect maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
