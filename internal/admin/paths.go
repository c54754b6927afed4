package admin

import "net/url"

func ServicesPath() string {
	return "/services"
}

func ServicePath(idOrName string) string {
	return "/services/" + url.PathEscape(idOrName)
}

func ServiceRoutesPath(service string) string {
	return ServicePath(service) + "/routes"
}

func ServiceRoutePath(service, idOrName string) string {
	return ServiceRoutesPath(service) + "/" + url.PathEscape(idOrName)
}

func ServicePluginsPath(service string) string {
	return ServicePath(service) + "/plugins"
}

func ServicePluginPath(service, id string) string {
	return ServicePluginsPath(service) + "/" + url.PathEscape(id)
}

func PluginsPath() string {
	return "/plugins"
}

func PluginPath(id string) string {
	return "/plugins/" + url.PathEscape(id)
}

func ConsumersPath() string {
	return "/consumers"
}

func ConsumerPath(username string) string {
	return "/consumers/" + url.PathEscape(username)
}

func ConsumerJWTPath(username string) string {
	return ConsumerPath(username) + "/jwt"
}

func ConsumerJWTCredentialPath(username, id string) string {
	return ConsumerJWTPath(username) + "/" + url.PathEscape(id)
}

func ConsumerACLsPath(username string) string {
	return ConsumerPath(username) + "/acls"
}

func ConsumerACLPath(username, idOrGroup string) string {
	return ConsumerACLsPath(username) + "/" + url.PathEscape(idOrGroup)
}
